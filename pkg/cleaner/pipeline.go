// pkg/cleaner/pipeline.go
package cleaner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/model"
)

// ErrStageCycle is returned when stage declarations cannot be ordered
var ErrStageCycle = errors.New("stage dependencies form a cycle")

// StageFunc transforms a frame within a run
type StageFunc func(run *Run, f *model.Frame) (*model.Frame, error)

// Stage is one cleaning step with the columns it reads and writes. Terminal
// stages run after every other stage.
type Stage struct {
	Name     string
	Reads    []string
	Writes   []string
	Terminal bool
	Apply    StageFunc
}

// Resolve orders stages from their declarations. A stage reading a column
// another stage writes runs after that stage; any other conflict keeps list
// order. The documented default list resolves to itself.
func Resolve(stages []Stage) ([]Stage, error) {
	n := len(stages)
	after := make([][]int, n) // after[i] runs after i
	indegree := make([]int, n)
	edge := func(from, to int) {
		after[from] = append(after[from], to)
		indegree[to]++
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := stages[i], stages[j]
			switch {
			case a.Terminal != b.Terminal:
				if a.Terminal {
					edge(j, i)
				} else {
					edge(i, j)
				}
			case overlaps(b.Reads, a.Writes):
				edge(i, j)
			case overlaps(a.Reads, b.Writes):
				edge(j, i)
			case overlaps(a.Writes, b.Writes), a.Terminal && b.Terminal:
				edge(i, j)
			}
		}
	}

	// Kahn's algorithm, always taking the earliest ready stage
	done := make([]bool, n)
	ordered := make([]Stage, 0, n)
	for len(ordered) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i := 0; i < n; i++ {
				if !done[i] {
					stuck = append(stuck, stages[i].Name)
				}
			}
			return nil, fmt.Errorf("%w: %s", ErrStageCycle, strings.Join(stuck, ", "))
		}
		done[next] = true
		ordered = append(ordered, stages[next])
		for _, j := range after[next] {
			indegree[j]--
		}
	}
	return ordered, nil
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		if contains(b, x) {
			return true
		}
	}
	return false
}

// Apply threads a frame through stages in the given order
func Apply(run *Run, f *model.Frame, stages ...Stage) (*model.Frame, error) {
	for _, s := range stages {
		start := time.Now()
		out, err := s.Apply(run, f)
		if err != nil {
			return nil, fmt.Errorf("stage %s failed: %w", s.Name, err)
		}
		f = out
		run.logger.Debug("Stage complete",
			zap.String("stage", s.Name),
			zap.Int("columns", f.Width()),
			zap.Duration("duration", time.Since(start)))
	}
	return f, nil
}

// Pipeline is a resolved sequence of stages
type Pipeline struct {
	stages []Stage
}

// NewPipeline resolves the execution order of stages
func NewPipeline(stages ...Stage) (*Pipeline, error) {
	ordered, err := Resolve(stages)
	if err != nil {
		return nil, err
	}
	return &Pipeline{stages: ordered}, nil
}

// DefaultPipeline returns the ten standard cleaning stages
func DefaultPipeline() *Pipeline {
	p, err := NewPipeline(DefaultStages()...)
	if err != nil {
		// the default declarations are acyclic
		panic(err)
	}
	return p
}

// Stages returns the stages in execution order
func (p *Pipeline) Stages() []Stage {
	return append([]Stage(nil), p.stages...)
}

// Names returns the stage names in execution order
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Run applies every stage, checking for cancellation between stages
func (p *Pipeline) Run(ctx context.Context, run *Run, f *model.Frame) (*model.Frame, error) {
	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		f, err = Apply(run, f, s)
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}
