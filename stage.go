package captcha

import (
	"fmt"

	"github.com/submersibletoaster/captcha/failure"
)

// Stage is one step of a generation pipeline.
type Stage int

const (
	StageRenderText Stage = iota // whole string, centered
	StageRenderChars             // one scattered sub-canvas per character
	StageBackgroundNoise
	StageWarp
	StageBlur
	StageDone
)

var stageNames = map[Stage]string{
	StageRenderText:      "RENDER_TEXT",
	StageRenderChars:     "RENDER_CHARS",
	StageBackgroundNoise: "ADD_BACKGROUND_NOISE",
	StageWarp:            "WARP",
	StageBlur:            "BLUR",
	StageDone:            "DONE",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// pipelines lists, per difficulty, the only order in which stages may run.
// Noise has to precede the warp: once the canvas is resampled there is no
// drawing surface left to add strokes to.
var pipelines = map[Difficulty][]Stage{
	Simple: {StageRenderText, StageDone},
	Medium: {StageRenderText, StageBackgroundNoise, StageDone},
	Hard:   {StageRenderChars, StageBackgroundNoise, StageWarp, StageBlur, StageDone},
}

// pipeline is the state machine guarding a single generation.
type pipeline struct {
	seq  []Stage
	pos  int
	done []Stage
}

func newPipeline(d Difficulty) *pipeline {
	return &pipeline{seq: pipelines[d]}
}

// enter moves to s, refusing anything but the next stage in sequence.
func (p *pipeline) enter(s Stage) error {
	if p.pos >= len(p.seq) || p.seq[p.pos] != s {
		from := "START"
		if len(p.done) > 0 {
			from = p.done[len(p.done)-1].String()
		}
		return failure.NewStageOrder(from, s.String())
	}
	p.pos++
	p.done = append(p.done, s)
	return nil
}

func (p *pipeline) finished() bool {
	return p.pos == len(p.seq)
}
