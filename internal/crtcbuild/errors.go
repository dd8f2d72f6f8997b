package crtcbuild

import (
	"errors"
	"fmt"
)

// Error kinds. A StageError unwraps to its kind, so callers match with errors.Is.
var (
	ErrToolchain = errors.New("toolchain bootstrap failed")
	ErrSync      = errors.New("source sync failed")
	ErrPatch     = errors.New("source patch failed")
	ErrConfig    = errors.New("build configuration failed")
	ErrBuild     = errors.New("build failed")
	ErrArtifact  = errors.New("expected artifact missing")
	ErrPackaging = errors.New("packaging failed")
)

// Stage names used in StageError and progress output.
const (
	StageToolchain = "toolchain"
	StageSync      = "sync"
	StagePatch     = "patch"
	StageConfig    = "gn gen"
	StageBuild     = "ninja"
	StageCollect   = "collect"
	StagePackage   = "package"
)

// StageError records which stage failed for which request. The external
// command output has already been streamed, so the message stays short.
type StageError struct {
	Stage   string
	Request *BuildRequest // nil for stages not bound to one request
	Kind    error
	Err     error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Request != nil {
		msg = fmt.Sprintf("%s [%s]", msg, e.Request)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func stageErr(stage string, kind error, req *BuildRequest, err error) error {
	return &StageError{Stage: stage, Request: req, Kind: kind, Err: err}
}
