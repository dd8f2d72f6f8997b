package crtcbuild

import "context"

// ninja targets
const (
	productLibrary    = "crtc"
	productExamples   = "crtc-examples"
	productDependency = "webrtc"
)

// ProductFor picks the single ninja target built for req.
func ProductFor(req BuildRequest) string {
	if req.Project == ProjectDependency {
		return productDependency
	}
	if req.Examples {
		return productExamples
	}
	return productLibrary
}

// BuildExecutor runs ninja against a generated build graph.
type BuildExecutor struct {
	ec *ExecutionContext
}

func NewBuildExecutor(ec *ExecutionContext) *BuildExecutor {
	return &BuildExecutor{ec: ec}
}

// Execute builds product in out/<os>/<cpu>. A non-zero exit is a build error.
func (b *BuildExecutor) Execute(ctx context.Context, req BuildRequest, product string) error {
	p := b.ec.Paths(req)
	step("Building %s for %s/%s", product, req.TargetOS, req.TargetCPU)
	cmd := b.ec.Tool("ninja", p.Tree, "-C", p.Out, product)
	if err := b.ec.Runner.Run(ctx, cmd); err != nil {
		return stageErr(StageBuild, ErrBuild, &req, err)
	}
	return nil
}
