// Package template expands command response templates against per-event
// context. Rendering runs inline on the chat hot path and must stay cheap;
// it never fails, substituting placeholders for unavailable fields.
package template

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/mugummy/chzzkbot/internal/domain"
)

// BranchDelimiter splits a template into alternatives, one of which is
// chosen uniformly at random per render.
const BranchDelimiter = "||"

// placeholder replaces variables whose source is unavailable (stream
// offline, metadata lookup failed).
const placeholder = "-"

// Context carries everything a template can reference for one invocation.
type Context struct {
	Nickname    string
	Count       int
	ViewerCount int
	Live        *domain.LiveStatus
	Now         time.Time
}

// Renderer expands templates. The random source is injectable for tests.
type Renderer struct {
	randIntN func(n int) int
}

func New() *Renderer {
	return &Renderer{randIntN: rand.IntN}
}

// NewWithRand builds a renderer with a fixed random source.
func NewWithRand(randIntN func(n int) int) *Renderer {
	return &Renderer{randIntN: randIntN}
}

// Render picks a random branch (if the template has any) and substitutes all
// supported variables. Without the branch delimiter the result is
// deterministic for a given context.
func (r *Renderer) Render(tpl string, ctx Context) string {
	if strings.Contains(tpl, BranchDelimiter) {
		branches := strings.Split(tpl, BranchDelimiter)
		tpl = branches[r.randIntN(len(branches))]
	}

	replacer := strings.NewReplacer(
		"{user}", ctx.Nickname,
		"{count}", strconv.Itoa(ctx.Count),
		"{usercount}", strconv.Itoa(ctx.ViewerCount),
		"{title}", r.title(ctx),
		"{category}", r.category(ctx),
		"{viewers}", r.viewers(ctx),
		"{uptime}", r.uptime(ctx),
	)
	return strings.TrimSpace(replacer.Replace(tpl))
}

func (r *Renderer) title(ctx Context) string {
	if ctx.Live == nil || ctx.Live.Title == "" {
		return placeholder
	}
	return ctx.Live.Title
}

func (r *Renderer) category(ctx Context) string {
	if ctx.Live == nil || ctx.Live.Category == "" {
		return placeholder
	}
	return ctx.Live.Category
}

func (r *Renderer) viewers(ctx Context) string {
	if ctx.Live == nil || !ctx.Live.Live {
		return placeholder
	}
	return strconv.Itoa(ctx.Live.ViewerCount)
}

func (r *Renderer) uptime(ctx Context) string {
	if ctx.Live == nil || !ctx.Live.Live || ctx.Live.StartedAt.IsZero() {
		return placeholder
	}
	elapsed := ctx.Now.Sub(ctx.Live.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	h := int(elapsed.Hours())
	m := int(elapsed.Minutes()) % 60
	s := int(elapsed.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	return fmt.Sprintf("%dm %ds", m, s)
}
