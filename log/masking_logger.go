/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"fmt"
	"io"
	"reflect"
	"unsafe"

	"github.com/ssgreg/logf"
)

// StringMasker hides sensitive parts of a string.
type StringMasker interface {
	Mask(s string) string
}

// MaskingLogger masks messages and string-like fields before passing them to the wrapped logger.
// Fields of arbitrary types (log.Any) are not inspected.
type MaskingLogger struct {
	log    FieldLogger
	masker StringMasker
}

// NewMaskingLogger wraps l.
func NewMaskingLogger(l FieldLogger, m StringMasker) FieldLogger {
	return MaskingLogger{l, m}
}

// With returns a new logger with the given additional fields.
func (l MaskingLogger) With(fs ...Field) FieldLogger {
	return MaskingLogger{l.log.With(l.maskFields(fs)...), l.masker}
}

// Debug logs message at "debug" level.
func (l MaskingLogger) Debug(text string, fs ...Field) {
	l.log.Debug(l.masker.Mask(text), l.maskFields(fs)...)
}

// Info logs message at "info" level.
func (l MaskingLogger) Info(text string, fs ...Field) {
	l.log.Info(l.masker.Mask(text), l.maskFields(fs)...)
}

// Warn logs message at "warn" level.
func (l MaskingLogger) Warn(text string, fs ...Field) {
	l.log.Warn(l.masker.Mask(text), l.maskFields(fs)...)
}

// Error logs message at "error" level.
func (l MaskingLogger) Error(text string, fs ...Field) {
	l.log.Error(l.masker.Mask(text), l.maskFields(fs)...)
}

// Debugf logs a formatted message at "debug" level.
func (l MaskingLogger) Debugf(format string, args ...interface{}) { l.Debug(fmt.Sprintf(format, args...)) }

// Infof logs a formatted message at "info" level.
func (l MaskingLogger) Infof(format string, args ...interface{}) { l.Info(fmt.Sprintf(format, args...)) }

// Warnf logs a formatted message at "warn" level.
func (l MaskingLogger) Warnf(format string, args ...interface{}) { l.Warn(fmt.Sprintf(format, args...)) }

// Errorf logs a formatted message at "error" level.
func (l MaskingLogger) Errorf(format string, args ...interface{}) { l.Error(fmt.Sprintf(format, args...)) }

// AtLevel calls the given fn if logging a message at the specified level is enabled.
func (l MaskingLogger) AtLevel(level Level, fn func(logFunc LogFunc)) {
	l.log.AtLevel(level, func(logFunc LogFunc) {
		fn(func(msg string, fs ...Field) {
			logFunc(l.masker.Mask(msg), l.maskFields(fs)...)
		})
	})
}

// WithLevel returns a new logger with additional level check.
func (l MaskingLogger) WithLevel(level Level) FieldLogger {
	return MaskingLogger{l.log.WithLevel(level), l.masker}
}

var stringSliceType = reflect.TypeOf([]string{})

// maskFields returns fields unchanged when nothing had to be masked, otherwise a modified copy.
func (l MaskingLogger) maskFields(fields []Field) []Field {
	var masked []Field
	replace := func(i int, f Field) {
		if masked == nil {
			masked = make([]Field, len(fields))
			copy(masked, fields)
		}
		masked[i] = f
	}

	for i := range fields {
		field := fields[i]
		switch field.Type {
		case logf.FieldTypeBytesToString:
			s := *(*string)(unsafe.Pointer(&field.Bytes)) // nolint: gosec
			if m := l.masker.Mask(s); m != s {
				replace(i, String(field.Key, m))
			}
		case logf.FieldTypeBytes, logf.FieldTypeRawBytes:
			if s := string(field.Bytes); field.Bytes != nil {
				if m := l.masker.Mask(s); m != s {
					replace(i, logf.ConstBytes(field.Key, []byte(m)))
				}
			}
		case logf.FieldTypeError:
			if err, ok := field.Any.(error); ok && err != nil {
				s := err.Error()
				if m := l.masker.Mask(s); m != s {
					replace(i, NamedError(field.Key, maskedError{s: m, verbose: l.masker.Mask(fmt.Sprintf("%+v", err))}))
				}
			}
		case logf.FieldTypeArray:
			// logf wraps string slices into its own named type.
			if v := reflect.ValueOf(field.Any); field.Any != nil && v.CanConvert(stringSliceType) {
				if ms, changed := l.maskStrings(v.Convert(stringSliceType).Interface().([]string)); changed {
					replace(i, Strings(field.Key, ms))
				}
			}
		}
	}

	if masked == nil {
		return fields
	}
	return masked
}

func (l MaskingLogger) maskStrings(ss []string) ([]string, bool) {
	res := make([]string, len(ss))
	changed := false
	for i, s := range ss {
		res[i] = l.masker.Mask(s)
		changed = changed || res[i] != s
	}
	return res, changed
}

// maskedError keeps the verbose representation masked too.
type maskedError struct {
	s       string
	verbose string
}

func (e maskedError) Error() string { return e.s }

func (e maskedError) Format(f fmt.State, _ rune) { _, _ = io.WriteString(f, e.verbose) }

