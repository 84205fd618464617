// Package hwaccel probes the local ffmpeg binary for the hardware
// acceleration methods and encoders it was actually built with, so the
// Encoder Supervisor's "auto" acceleration priority reflects what this
// host can really do rather than a static guess.
package hwaccel

import (
	"context"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/transcodarr/internal/codec"
)

// Capability is one detected hardware acceleration method.
type Capability struct {
	Type              codec.HWAccel `json:"type"`
	Name              string        `json:"name"`
	DeviceName        string        `json:"device_name,omitempty"`
	DevicePath        string        `json:"device_path,omitempty"`
	SupportedEncoders []string      `json:"supported_encoders,omitempty"`
	SupportedDecoders []string      `json:"supported_decoders,omitempty"`
	DetectedAt        time.Time     `json:"detected_at"`
}

// Capabilities is the full detection result.
type Capabilities struct {
	Capabilities []Capability `json:"capabilities"`
	DetectedAt   time.Time    `json:"detected_at"`
	Recommended  *Capability  `json:"recommended,omitempty"`
}

// Detector detects and caches hardware acceleration capabilities for one
// ffmpeg binary.
type Detector struct {
	ffmpegPath   string
	logger       *slog.Logger
	capabilities *Capabilities
	mu           sync.RWMutex
}

// New creates a Detector bound to ffmpegPath.
func New(ffmpegPath string, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{ffmpegPath: ffmpegPath, logger: logger}
}

// Detect probes ffmpeg's -hwaccels/-encoders/-decoders output and caches
// the result.
func (d *Detector) Detect(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps := &Capabilities{DetectedAt: time.Now()}

	accels := d.detectHWAccels(ctx)
	hwEncoders := d.detectHardwareEncoders(ctx)
	hwDecoders := d.detectHardwareDecoders(ctx)

	for _, accel := range accels {
		hw, ok := codec.ParseHWAccel(accel)
		if !ok {
			continue
		}
		c := Capability{Type: hw, Name: displayName(accel), DetectedAt: time.Now()}

		for _, enc := range hwEncoders {
			if matchesHWAccel(enc, accel) {
				c.SupportedEncoders = append(c.SupportedEncoders, enc)
			}
		}
		for _, dec := range hwDecoders {
			if matchesHWAccel(dec, accel) {
				c.SupportedDecoders = append(c.SupportedDecoders, dec)
			}
		}
		if accel == "vaapi" {
			c.DevicePath = detectVAAPIDevice()
		}
		if accel == "cuda" {
			c.DeviceName = detectNVIDIAGPU(ctx)
		}

		caps.Capabilities = append(caps.Capabilities, c)
	}

	caps.Recommended = selectRecommended(caps.Capabilities)
	d.capabilities = caps

	d.logger.Info("hardware acceleration detected",
		slog.Int("count", len(caps.Capabilities)))

	return caps, nil
}

// PriorityList returns the detected capabilities with at least one
// supported encoder, ordered CUDA, QSV, VAAPI, VideoToolbox regardless of
// the order ffmpeg reported them in. Suitable as
// encodersupervisor.Dependencies.HWAccelPriority when a profile's
// acceleration is set to "auto".
func (d *Detector) PriorityList() []codec.HWAccel {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.capabilities == nil {
		return nil
	}

	order := []codec.HWAccel{codec.HWAccelCUDA, codec.HWAccelQSV, codec.HWAccelVAAPI, codec.HWAccelVT}
	var priority []codec.HWAccel
	for _, want := range order {
		for _, c := range d.capabilities.Capabilities {
			if c.Type == want && len(c.SupportedEncoders) > 0 {
				priority = append(priority, c.Type)
			}
		}
	}
	return priority
}

func (d *Detector) detectHWAccels(ctx context.Context) []string {
	output, err := exec.CommandContext(ctx, d.ffmpegPath, "-hide_banner", "-hwaccels").Output()
	if err != nil {
		d.logger.Warn("detecting hwaccels failed", "error", err)
		return nil
	}

	var accels []string
	inList := false
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "Hardware acceleration methods:") {
			inList = true
			continue
		}
		if inList && !strings.Contains(line, ":") {
			accels = append(accels, line)
		}
	}
	return accels
}

var codecLineRe = regexp.MustCompile(`^\s*V\.{5}\s+(\S+)\s+`)

func (d *Detector) detectHardwareEncoders(ctx context.Context) []string {
	return d.detectHardwareCodecs(ctx, "-encoders",
		[]string{"_nvenc", "_qsv", "_vaapi", "_videotoolbox", "_amf", "_mf", "_omx", "_v4l2m2m"})
}

func (d *Detector) detectHardwareDecoders(ctx context.Context) []string {
	return d.detectHardwareCodecs(ctx, "-decoders",
		[]string{"_cuvid", "_qsv", "_vaapi", "_videotoolbox", "_mf", "_v4l2m2m"})
}

func (d *Detector) detectHardwareCodecs(ctx context.Context, flag string, hwSuffixes []string) []string {
	output, err := exec.CommandContext(ctx, d.ffmpegPath, "-hide_banner", flag).Output()
	if err != nil {
		d.logger.Warn("detecting ffmpeg codecs failed", "flag", flag, "error", err)
		return nil
	}

	var found []string
	for _, line := range strings.Split(string(output), "\n") {
		m := codecLineRe.FindStringSubmatch(line)
		if len(m) < 2 {
			continue
		}
		for _, suffix := range hwSuffixes {
			if strings.HasSuffix(m[1], suffix) {
				found = append(found, m[1])
				break
			}
		}
	}
	return found
}

func detectVAAPIDevice() string {
	for _, path := range []string{"/dev/dri/renderD128", "/dev/dri/renderD129", "/dev/dri/renderD130"} {
		if matches, _ := filepath.Glob(path); len(matches) > 0 {
			return matches[0]
		}
	}
	matches, _ := filepath.Glob("/dev/dri/renderD*")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}

func detectNVIDIAGPU(ctx context.Context) string {
	output, err := exec.CommandContext(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader,nounits").Output()
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[0])
}

func matchesHWAccel(codecName, accel string) bool {
	codecName = strings.ToLower(codecName)
	switch strings.ToLower(accel) {
	case "cuda":
		return strings.Contains(codecName, "nvenc") || strings.Contains(codecName, "cuvid")
	case "qsv":
		return strings.HasSuffix(codecName, "_qsv")
	case "vaapi":
		return strings.HasSuffix(codecName, "_vaapi")
	case "videotoolbox":
		return strings.HasSuffix(codecName, "_videotoolbox")
	}
	return false
}

func displayName(accel string) string {
	names := map[string]string{
		"cuda":         "NVIDIA CUDA",
		"qsv":          "Intel Quick Sync Video",
		"vaapi":        "Video Acceleration API (Linux)",
		"videotoolbox": "Apple VideoToolbox",
	}
	if name, ok := names[accel]; ok {
		return name
	}
	return accel
}

func selectRecommended(caps []Capability) *Capability {
	priority := []codec.HWAccel{codec.HWAccelCUDA, codec.HWAccelQSV, codec.HWAccelVAAPI, codec.HWAccelVT}
	for _, want := range priority {
		for i := range caps {
			if caps[i].Type == want && len(caps[i].SupportedEncoders) > 0 {
				return &caps[i]
			}
		}
	}
	return nil
}
