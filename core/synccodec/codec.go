// Package synccodec converts between the slot store and the string payloads
// exchanged with a paired device.
//
// Outbound: "Sync;" followed by title#start#end records joined by ",", plus
// "Start;<title>" and "End;<title>" notices. Titles are not escaped, so a title
// containing '#' or ',' produces an ambiguous payload; the receiving side has
// always accepted that.
//
// Inbound: an ordered list of task titles that replaces the task registry.
package synccodec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	coreerrors "github.com/davidahmann/tempo/core/errors"
	"github.com/davidahmann/tempo/core/measurements"
	schemasync "github.com/davidahmann/tempo/core/schema/v1/sync"
	"github.com/davidahmann/tempo/core/schema/validate"
	"github.com/davidahmann/tempo/core/tasks"
)

const (
	Tag             = "Sync;"
	FieldSeparator  = "#"
	RecordSeparator = ","
)

// Notice tags prefix the single-title messages sent when tracking starts or ends.
const (
	StartTag = "Start;"
	EndTag   = "End;"
)

// EncodeNotice renders a start or end notice for title.
func EncodeNotice(tag string, title string) string {
	return tag + title
}

// Outbound reports whether payload carries one of the outbound tags.
func Outbound(payload string) bool {
	for _, tag := range []string{Tag, StartTag, EndTag} {
		if strings.HasPrefix(payload, tag) {
			return true
		}
	}
	return false
}

// MissingTitle replaces the title of a task that no longer exists.
const MissingTitle = "Not found"

// TitleResolver returns the title for a task id, or false if there is none.
type TitleResolver func(taskID int) (string, bool)

// Encode renders entries in order. It never fails: unknown tasks are written
// as MissingTitle.
func Encode(entries []measurements.Entry, resolve TitleResolver) string {
	var builder strings.Builder
	builder.WriteString(Tag)
	for index, entry := range entries {
		if index > 0 {
			builder.WriteString(RecordSeparator)
		}
		writeRecord(&builder, entry, resolve)
	}
	return builder.String()
}

// EncodeLog streams the log and resolves titles through the registry at encode
// time. It returns the payload and the number of measurements it holds.
func EncodeLog(log *measurements.Log, registry *tasks.Registry) (string, int, error) {
	resolve, err := RegistryResolver(registry)
	if err != nil {
		return "", 0, err
	}
	var builder strings.Builder
	builder.WriteString(Tag)
	count := 0
	for entry, err := range log.All() {
		if err != nil {
			return "", 0, fmt.Errorf("encode measurements: %w", err)
		}
		if count > 0 {
			builder.WriteString(RecordSeparator)
		}
		writeRecord(&builder, entry, resolve)
		count++
	}
	return builder.String(), count, nil
}

// RegistryResolver resolves titles by reading the registry. Any lookup failure,
// including a task deleted by a later replace, resolves to false.
func RegistryResolver(registry *tasks.Registry) (TitleResolver, error) {
	if registry == nil {
		return nil, fmt.Errorf("task registry is required")
	}
	return func(taskID int) (string, bool) {
		task, err := registry.Lookup(taskID)
		if err != nil {
			return "", false
		}
		return task.Title, true
	}, nil
}

// DecodeTasks accepts the ordered titles delivered by the transport. It checks
// them against the registry limits; titles are kept byte for byte.
func DecodeTasks(values []string, capacity int) ([]string, error) {
	if err := tasks.ValidateTitles(values, capacity); err != nil {
		return nil, err
	}
	out := make([]string, len(values))
	copy(out, values)
	return out, nil
}

// ParseInboundJSON validates a task list document against the embedded schema
// and returns its titles.
func ParseInboundJSON(data []byte, capacity int) ([]string, error) {
	if err := validate.Document(schemasync.TaskListSchema, data); err != nil {
		return nil, coreerrors.Wrap(
			fmt.Errorf("inbound task list: %w", err),
			coreerrors.CategoryInvalidInput,
			"task_list_invalid",
			"send a tempo.sync.tasks document",
			false,
		)
	}
	var list schemasync.TaskList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse inbound task list: %w", err)
	}
	return DecodeTasks(list.Tasks, capacity)
}

// ParseLines accepts a plain-text inbound list: one title per line, blank lines
// ignored.
func ParseLines(text string, capacity int) ([]string, error) {
	values := make([]string, 0)
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		values = append(values, line)
	}
	return DecodeTasks(values, capacity)
}

func writeRecord(builder *strings.Builder, entry measurements.Entry, resolve TitleResolver) {
	title := MissingTitle
	if resolve != nil {
		if resolved, ok := resolve(entry.TaskID); ok {
			title = resolved
		}
	}
	builder.WriteString(title)
	builder.WriteString(FieldSeparator)
	builder.WriteString(strconv.FormatInt(entry.Start, 10))
	builder.WriteString(FieldSeparator)
	builder.WriteString(strconv.FormatInt(entry.End, 10))
}
