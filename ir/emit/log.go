package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes structured log output to a writer, in text or
// newline-delimited JSON form.
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
		return
	}
	l.emitText(event)
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		RunID   string                 `json:"runID"`
		Step    int                    `json:"step"`
		BlockID string                 `json:"blockID"`
		TaskID  string                 `json:"taskID"`
		Msg     string                 `json:"msg"`
		Meta    map[string]interface{} `json:"meta"`
	}{event.RunID, event.Step, event.BlockID, event.TaskID, event.Msg, event.Meta})
	if err != nil {
		fmt.Fprintf(l.writer, "{\"error\":%q}\n", err.Error())
		return
	}
	l.writer.Write(data)
	l.writer.Write([]byte("\n"))
}

func (l *LogEmitter) emitText(event Event) {
	fmt.Fprintf(l.writer, "[%s] runID=%s step=%d block=%s task=%s",
		event.Msg, event.RunID, event.Step, event.BlockID, event.TaskID)
	if len(event.Meta) > 0 {
		meta, _ := json.Marshal(event.Meta)
		fmt.Fprintf(l.writer, " meta=%s", meta)
	}
	fmt.Fprintln(l.writer)
}

func (l *LogEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		l.Emit(e)
	}
	return nil
}

func (l *LogEmitter) Flush(context.Context) error { return nil }
