package audio

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	duckFactor   = 0.5
	fadeDuration = 150 * time.Millisecond
	fadeStep     = 10 * time.Millisecond
	maxVolume    = 150
)

var volumeRe = regexp.MustCompile(`(\d+)\s*%`)

// sinkInput is one pulse playback stream.
type sinkInput struct {
	id     int
	volume int
	app    string
}

// volumeMove fades one stream between two volumes.
type volumeMove struct {
	id       int
	from, to int
}

// Ducker fades every playback stream except the assistant's own down
// while speech is playing, and restores the volumes it remembered
// afterwards. Streams are matched by pulse application.name.
type Ducker struct {
	mu        sync.Mutex
	self      map[string]bool
	saved     map[int]int // volumes before the duck
	minVolume int
}

func NewDucker(selfNames []string, minVolume int) *Ducker {
	self := make(map[string]bool, len(selfNames))
	for _, n := range selfNames {
		self[n] = true
	}
	return &Ducker{
		self:      self,
		minVolume: clampVolume(minVolume),
	}
}

// Duck halves foreign stream volumes, floored at minVolume. Calling it
// while already ducked is a no-op.
func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.saved != nil {
		return nil
	}

	streams, err := sinkInputs(ctx)
	if err != nil {
		return fmt.Errorf("list sink inputs: %w", err)
	}

	saved := make(map[int]int)
	var moves []volumeMove
	for _, s := range streams {
		if d.self[s.app] {
			continue
		}
		target := int(math.Round(float64(s.volume) * duckFactor))
		if target < d.minVolume {
			target = d.minVolume
		}
		saved[s.id] = s.volume
		moves = append(moves, volumeMove{id: s.id, from: s.volume, to: target})
	}

	if err := fade(ctx, moves, fadeDuration); err != nil {
		return err
	}
	d.saved = saved
	return nil
}

// Restore fades foreign streams back to their pre-duck volumes. Streams
// that appeared after the duck are left alone.
func (d *Ducker) Restore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.saved == nil {
		return nil
	}

	streams, err := sinkInputs(ctx)
	if err != nil {
		return fmt.Errorf("list sink inputs: %w", err)
	}

	var moves []volumeMove
	for _, s := range streams {
		if orig, ok := d.saved[s.id]; ok {
			moves = append(moves, volumeMove{id: s.id, from: s.volume, to: orig})
		}
	}

	if err := fade(ctx, moves, fadeDuration); err != nil {
		return err
	}
	d.saved = nil
	return nil
}

// fade steps every move from its current to its target volume over the
// given duration.
func fade(ctx context.Context, moves []volumeMove, duration time.Duration) error {
	if len(moves) == 0 {
		return nil
	}

	steps := int(duration / fadeStep)
	if steps < 1 {
		steps = 1
	}

	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frac := float64(i) / float64(steps)
		for _, m := range moves {
			v := m.from + int(math.Round(float64(m.to-m.from)*frac))
			if err := setSinkInputVolume(ctx, m.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", m.id, err)
			}
		}

		if i < steps {
			time.Sleep(duration / time.Duration(steps))
		}
	}
	return nil
}

// sinkInputs parses `pactl list sink-inputs` into streams. Blocks
// missing both a volume and an application name are skipped.
func sinkInputs(ctx context.Context) ([]sinkInput, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}

	var (
		res []sinkInput
		cur *sinkInput
	)
	flush := func() {
		if cur != nil && (cur.volume > 0 || cur.app != "") {
			res = append(res, *cur)
		}
		cur = nil
	}

	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if rest, ok := strings.CutPrefix(line, "Sink Input #"); ok {
			flush()
			if id, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
				cur = &sinkInput{id: id}
			}
			continue
		}
		if cur == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Volume:") && cur.volume == 0:
			if m := volumeRe.FindStringSubmatch(line); len(m) == 2 {
				cur.volume, _ = strconv.Atoi(m[1])
			}
		case strings.HasPrefix(line, "application.name =") && cur.app == "":
			if _, quoted, ok := strings.Cut(line, `"`); ok {
				cur.app, _, _ = strings.Cut(quoted, `"`)
			}
		}
	}
	flush()

	return res, nil
}

func setSinkInputVolume(ctx context.Context, id, percent int) error {
	percent = clampVolume(percent)
	return exec.CommandContext(ctx, "pactl",
		"set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", percent)).Run()
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > maxVolume {
		return maxVolume
	}
	return v
}
