package outbox

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	coreerrors "github.com/davidahmann/tempo/core/errors"
	"github.com/davidahmann/tempo/core/fsx"
	"github.com/davidahmann/tempo/core/jcs"
	schemasync "github.com/davidahmann/tempo/core/schema/v1/sync"
	"github.com/davidahmann/tempo/core/schema/validate"
	"github.com/davidahmann/tempo/core/synccodec"
)

// File appends outbound payloads to a JSONL outbox. Send returns nil only once
// the record is fsynced; that nil is the acknowledgement.
type File struct {
	Path string
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewFile(path string) *File {
	return &File{Path: path}
}

func (f *File) Send(ctx context.Context, payload string) error {
	if err := ctx.Err(); err != nil {
		return delivery(err)
	}
	path := strings.TrimSpace(f.Path)
	if path == "" {
		return coreerrors.Wrap(
			fmt.Errorf("outbox path is required"),
			coreerrors.CategoryInvalidInput,
			"outbox_path_missing",
			"set sync.outbox in .tempo/config.yaml or pass --outbox",
			false,
		)
	}
	record, err := NewRecord(payload, f.now())
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal outbox record: %w", err)
	}
	if err := fsx.AppendLineLocked(path, encoded, 0o600); err != nil {
		return delivery(err)
	}
	return nil
}

// NewRecord builds an outbox record with a fresh batch id. The digest covers
// every field except itself.
func NewRecord(payload string, now time.Time) (schemasync.OutboxRecord, error) {
	if !synccodec.Outbound(payload) {
		return schemasync.OutboxRecord{}, coreerrors.Wrap(
			fmt.Errorf("payload must start with %q, %q or %q", synccodec.Tag, synccodec.StartTag, synccodec.EndTag),
			coreerrors.CategoryInvalidInput,
			"outbox_payload_invalid",
			"",
			false,
		)
	}
	createdAt := now.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	record := schemasync.OutboxRecord{
		SchemaID:      schemasync.OutboxRecordSchemaID,
		SchemaVersion: schemasync.SchemaVersion,
		BatchID:       uuid.NewString(),
		CreatedAt:     createdAt.Truncate(time.Second),
		Payload:       payload,
	}
	digest, err := Digest(record)
	if err != nil {
		return schemasync.OutboxRecord{}, err
	}
	record.PayloadDigest = digest
	return record, nil
}

func Digest(record schemasync.OutboxRecord) (string, error) {
	record.PayloadDigest = ""
	digest, err := jcs.Digest(record)
	if err != nil {
		return "", fmt.Errorf("digest outbox record: %w", err)
	}
	return digest, nil
}

// Read validates the whole file against the record schema, then checks every
// digest. A missing file is an empty outbox.
func Read(path string) ([]schemasync.OutboxRecord, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return nil, fmt.Errorf("outbox path is required")
	}
	if _, err := os.Stat(trimmedPath); err != nil {
		if os.IsNotExist(err) {
			return []schemasync.OutboxRecord{}, nil
		}
		return nil, fmt.Errorf("stat outbox: %w", err)
	}
	if err := validate.File(schemasync.OutboxRecordSchema, trimmedPath); err != nil {
		return nil, coreerrors.Wrap(
			fmt.Errorf("validate outbox: %w", err),
			coreerrors.CategoryCorruptState,
			"outbox_invalid",
			"inspect the outbox file; every line must be a tempo.sync.outbox_record",
			false,
		)
	}
	// #nosec G304 -- outbox path is explicit local user input.
	file, err := os.Open(trimmedPath)
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	records := make([]schemasync.OutboxRecord, 0)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), fsx.MaxAppendLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var record schemasync.OutboxRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("parse outbox line %d: %w", line, err)
		}
		sealed := record.PayloadDigest
		record.PayloadDigest = ""
		if err := jcs.Verify(record, sealed); err != nil {
			if !errors.Is(err, jcs.ErrDigestMismatch) {
				return nil, fmt.Errorf("outbox line %d: %w", line, err)
			}
			return nil, coreerrors.Wrap(
				fmt.Errorf("outbox line %d: %w", line, err),
				coreerrors.CategoryCorruptState,
				"outbox_digest_mismatch",
				"",
				false,
			)
		}
		record.PayloadDigest = sealed
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan outbox: %w", err)
	}
	return records, nil
}

func (f *File) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

func delivery(err error) error {
	return coreerrors.Wrap(
		fmt.Errorf("deliver sync payload: %w", err),
		coreerrors.CategoryDeliveryFailed,
		"sync_delivery_failed",
		"measurements were kept; retry the sync",
		true,
	)
}
