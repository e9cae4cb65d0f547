package fsx

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxAppendLineBytes bounds one appended record. Readers scan with the same
// limit, so a longer line would be unreadable.
const MaxAppendLineBytes = 1024 * 1024

// AppendLineLocked appends one JSONL record to path under path+".lock" and
// fsyncs before returning, so a nil error means the record is durable. line must
// not contain a newline; one is added.
func AppendLineLocked(path string, line []byte, mode os.FileMode) error {
	cleanPath, err := validateLocalOrAbsolutePath(path)
	if err != nil {
		return err
	}
	if err := checkAppendLine(line); err != nil {
		return err
	}
	parent := filepath.Dir(cleanPath)
	if parent != "." {
		if err := os.MkdirAll(parent, 0o750); err != nil {
			return fmt.Errorf("create append directory: %w", err)
		}
	}

	release, err := AcquireLockFile(cleanPath+".lock", LockOptions{})
	if err != nil {
		return err
	}
	defer release()

	// #nosec G304 -- append path is validated local relative or absolute.
	file, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("open append file: %w", err)
	}
	record := make([]byte, 0, len(line)+1)
	record = append(append(record, line...), '\n')
	if _, err := file.Write(record); err != nil {
		_ = file.Close()
		return fmt.Errorf("append file line: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync append file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close append file: %w", err)
	}
	SyncDir(parent)
	return nil
}

func checkAppendLine(line []byte) error {
	if len(line) == 0 {
		return fmt.Errorf("append line is empty")
	}
	if len(line) >= MaxAppendLineBytes {
		return fmt.Errorf("append line of %d bytes exceeds %d", len(line), MaxAppendLineBytes-1)
	}
	if bytes.IndexByte(line, '\n') >= 0 {
		return fmt.Errorf("append line must not contain a newline")
	}
	return nil
}

func validateLocalOrAbsolutePath(path string) (string, error) {
	cleanPath := filepath.Clean(path)
	if filepath.IsLocal(cleanPath) || filepath.IsAbs(cleanPath) {
		return cleanPath, nil
	}
	if volume := filepath.VolumeName(cleanPath); volume != "" && strings.HasPrefix(cleanPath, volume+string(filepath.Separator)) {
		return cleanPath, nil
	}
	return "", fmt.Errorf("path must be local relative or absolute: %s", path)
}
