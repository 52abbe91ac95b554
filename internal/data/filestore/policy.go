// Package filestore persists raw source texts per owner. Every backend shares
// the same key rules, enforced by Policy before any I/O happens.
package filestore

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"pyscope/internal/core/errors"
	"pyscope/internal/core/ports"
)

// Store is a FileStore that holds resources until closed.
type Store interface {
	ports.FileStore
	Close() error
}

var ownerPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("owner", func(fl validator.FieldLevel) bool {
			v := fl.Field().String()
			return ownerPattern.MatchString(v) && v != "." && v != ".."
		})
		_ = validate.RegisterValidation("basename", func(fl validator.FieldLevel) bool {
			v := fl.Field().String()
			return v != "." && v != ".." && !strings.ContainsAny(v, "/\\\x00") && strings.TrimSpace(v) == v
		})
	})
	return validate
}

type fileKey struct {
	Owner    string `validate:"required,owner"`
	Filename string `validate:"required,max=255,basename"`
}

// Policy holds the rules a key and payload must satisfy.
type Policy struct {
	Extensions []string
	MaxBytes   int64
}

func DefaultPolicy() Policy {
	return Policy{Extensions: []string{".py"}, MaxBytes: 4 << 20}
}

// CheckOwner validates an owner id on its own, for List.
func (p Policy) CheckOwner(owner string) error {
	return p.check(fileKey{Owner: owner, Filename: "x"})
}

// CheckKey validates owner and filename, including the extension.
func (p Policy) CheckKey(owner, filename string) error {
	if err := p.check(fileKey{Owner: owner, Filename: filename}); err != nil {
		return err
	}
	if !p.allowedExtension(filename) {
		return errors.AddContext(
			errors.Newf(errors.CodeInvalidExtension, "unsupported extension %q", filepath.Ext(filename)),
			errors.CtxFilename, filename)
	}
	return nil
}

// CheckWrite is CheckKey plus the payload size cap.
func (p Policy) CheckWrite(owner, filename string, data []byte) error {
	if err := p.CheckKey(owner, filename); err != nil {
		return err
	}
	if p.MaxBytes > 0 && int64(len(data)) > p.MaxBytes {
		return errors.AddContext(
			errors.Newf(errors.CodeValidationError, "file is %d bytes, limit is %d", len(data), p.MaxBytes),
			errors.CtxFilename, filename)
	}
	return nil
}

// ValidFilename reports whether filename would be accepted for storage.
func (p Policy) ValidFilename(filename string) bool {
	if err := getValidator().Var(filename, "required,max=255,basename"); err != nil {
		return false
	}
	return p.allowedExtension(filename)
}

func (p Policy) allowedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) == len(filename) {
		return false
	}
	for _, allowed := range p.Extensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

func (p Policy) check(key fileKey) error {
	err := getValidator().Struct(key)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if ok := asValidationErrors(err, &fieldErrs); !ok || len(fieldErrs) == 0 {
		return errors.Wrap(err, errors.CodeValidationError, "invalid file key")
	}
	fe := fieldErrs[0]
	var out error
	switch fe.Field() {
	case "Owner":
		out = errors.AddContext(errors.New(errors.CodeValidationError, "owner must be 1-64 characters of [A-Za-z0-9_.-]"), errors.CtxOwner, key.Owner)
	default:
		out = errors.AddContext(errors.New(errors.CodeValidationError, fmt.Sprintf("filename must be a plain base name (%s)", fe.Tag())), errors.CtxFilename, key.Filename)
	}
	return out
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	v, ok := err.(validator.ValidationErrors)
	if ok {
		*target = v
	}
	return ok
}
