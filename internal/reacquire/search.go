package reacquire

import "github.com/launchlab/shotcore/internal/frame"

// #region search-config
// SearchConfig shapes the directional search region. Image coordinates grow
// downward, so upward is negative Y.
type SearchConfig struct {
	FrameWidth   float64 `yaml:"frame_width"`
	FrameHeight  float64 `yaml:"frame_height"`
	HalfSizePx   float64 `yaml:"half_size_px"`
	SeedOffsetPx float64 `yaml:"seed_offset_px"` // away from the frame center
	UpwardBiasPx float64 `yaml:"upward_bias_px"`
	StepPx       float64 `yaml:"step_px"`
	MaxFrames    int     `yaml:"max_frames"`
}

// DefaultSearchConfig returns the calibrated defaults.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		FrameWidth:   1280,
		FrameHeight:  720,
		HalfSizePx:   40,
		SeedOffsetPx: 30,
		UpwardBiasPx: 20,
		StepPx:       6,
		MaxFrames:    20,
	}
}
// #endregion search-config

// #region region
// Region is an axis-aligned square around Center.
type Region struct {
	Center   frame.Point
	HalfSize float64
}

// Contains reports whether p lies inside the region, edges included.
func (r Region) Contains(p frame.Point) bool {
	return p.X >= r.Center.X-r.HalfSize && p.X <= r.Center.X+r.HalfSize &&
		p.Y >= r.Center.Y-r.HalfSize && p.Y <= r.Center.Y+r.HalfSize
}
// #endregion region

// #region search
// Search is the post-impact region where a lost ball is expected to
// reappear. It moves a fixed step per frame and expires after MaxFrames.
type Search struct {
	config SearchConfig

	armed     bool
	expired   bool
	refined   bool
	frames    int
	region    Region
	direction frame.Point
}

// NewSearch creates a disarmed search region.
func NewSearch(config SearchConfig) *Search {
	return &Search{config: config}
}

var up = frame.Point{X: 0, Y: -1}

// Arm seeds the region from the impact origin, pushed away from the frame
// center and upward.
func (s *Search) Arm(origin frame.Point) {
	mid := frame.Point{X: s.config.FrameWidth / 2, Y: s.config.FrameHeight / 2}
	away, ok := origin.Sub(mid).Unit()
	if !ok {
		away = frame.Point{}
	}
	seed := origin.Add(away.Scale(s.config.SeedOffsetPx)).Add(up.Scale(s.config.UpwardBiasPx))
	dir, ok := away.Add(up).Unit()
	if !ok {
		dir = up
	}
	s.armed = true
	s.expired = false
	s.refined = false
	s.frames = 0
	s.region = Region{Center: seed, HalfSize: s.config.HalfSizePx}
	s.direction = dir
}

// Refine points the region along the observed velocity.
func (s *Search) Refine(velocity frame.Point) {
	if !s.Active() {
		return
	}
	if dir, ok := velocity.Unit(); ok {
		s.direction = dir
		s.refined = true
	}
}

// Step advances the region one frame and expires it after MaxFrames.
func (s *Search) Step() {
	if !s.Active() {
		return
	}
	s.region.Center = s.region.Center.Add(s.direction.Scale(s.config.StepPx))
	s.frames++
	if s.frames >= s.config.MaxFrames {
		s.expired = true
	}
}

// Recenter moves the region onto a confirmed ball position.
func (s *Search) Recenter(p frame.Point) {
	if s.Active() {
		s.region.Center = p
	}
}

// Contains reports whether p is inside a live region.
func (s *Search) Contains(p frame.Point) bool {
	return s.Active() && s.region.Contains(p)
}

// Active reports whether the region is armed and not expired.
func (s *Search) Active() bool { return s.armed && !s.expired }

// Expired reports whether the region ran out of frames.
func (s *Search) Expired() bool { return s.armed && s.expired }

// Region returns the current region.
func (s *Search) Region() Region { return s.region }

// Direction returns the current unit step direction.
func (s *Search) Direction() frame.Point { return s.direction }

// Refined reports whether the direction came from observed velocity.
func (s *Search) Refined() bool { return s.refined }

// Frames returns the number of steps taken.
func (s *Search) Frames() int { return s.frames }

// Reset disarms the region.
func (s *Search) Reset() {
	*s = Search{config: s.config}
}
// #endregion search
