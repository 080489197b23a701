// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeStoreBackendUnsupported     Code = "store.backend.unsupported"
	CodeStoreBackendNotImplemented  Code = "store.backend.not_implemented"
	CodeStoreBackendInitFailure     Code = "store.backend.init.failure"
	CodeStoreBackendClosed          Code = "store.backend.closed"
	CodeStoreAddFailure             Code = "store.document.add.failure"
	CodeStoreUpdateFailure          Code = "store.document.update.failure"
	CodeStoreDeleteFailure          Code = "store.document.delete.failure"
	CodeStoreDocumentNotFound       Code = "store.document.not_found"
	CodeStoreSearchFailure          Code = "store.search.failure"
	CodeStoreStatsFailure           Code = "store.stats.failure"
	CodeStoreSnapshotCreateFailure  Code = "store.snapshot.create.failure"
	CodeStoreSnapshotRestoreFailure Code = "store.snapshot.restore.failure"
	CodeStoreSnapshotListFailure    Code = "store.snapshot.list.failure"
	CodeStoreSnapshotNotFound       Code = "store.snapshot.not_found"
	CodeStoreLockFailure            Code = "store.lock.failure"
	CodeStoreInvalidInput           Code = "store.invalid_input"
	CodeStoreDatabaseFailure        Code = "store.database.failure"

	CodeAdapterMissing      Code = "adapter.missing"
	CodeAdapterEmbedFailure Code = "adapter.embed.failure"

	CodeHistoryPersistWriteFailure Code = "history.persist.write.failure"
	CodeHistoryPersistReadFailure  Code = "history.persist.read.failure"
	CodeHistoryPersistInvalid      Code = "history.persist.decode.invalid_format"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"

	CodeInternalFailure Code = "internal.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldBackend(value string) Attr {
	return Field("backend", value)
}

func FieldCollection(value string) Attr {
	return Field("collection", value)
}

func FieldDocumentID(value string) Attr {
	return Field("document_id", value)
}

func FieldSnapshot(value string) Attr {
	return Field("snapshot", value)
}

func FieldBranch(value string) Attr {
	return Field("branch", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUnsupported(err error) bool {
	r := reason(CodeOf(err))
	return r == "unsupported" || r == "not_implemented"
}

func IsConfiguration(err error) bool {
	code := string(CodeOf(err))
	return strings.HasPrefix(code, "config.") || strings.HasPrefix(code, "adapter.")
}

func Join(errs ...error) error {
	return oops.Code(CodeInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
