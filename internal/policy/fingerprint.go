package policy

import (
	"math/rand"
	"sync"
	"time"

	"github.com/blanktrace/blanktrace/internal/config"
)

// defaultUserAgents is the pool rotated User-Agent strings are drawn
// from. It favors common, current desktop and mobile browsers so that
// rotated fingerprints blend into ordinary traffic.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
}

var fallbackAcceptLanguage = "en-US,en;q=0.9"

// FingerprintState tracks the currently presented User-Agent and
// Accept-Language, and the policy under which they rotate.
type FingerprintState struct {
	mu sync.Mutex

	currentUA   string
	currentLang string
	rotatedAt   time.Time

	mode          config.RotationMode
	interval      time.Duration
	randomizeUA   bool
	randomizeLang bool
	stripReferer  bool
	languages     []string
	rng           *rand.Rand
}

// NewFingerprintState seeds initial values from cfg and picks a starting
// User-Agent and Accept-Language.
func NewFingerprintState(cfg config.FingerprintConfig) *FingerprintState {
	fs := &FingerprintState{
		mode:          cfg.RotationMode,
		interval:      time.Duration(cfg.RotationIntervalSeconds) * time.Second,
		randomizeUA:   cfg.RandomizeUserAgent,
		randomizeLang: cfg.RandomizeAcceptLanguage,
		stripReferer:  cfg.StripReferer,
		languages:     cfg.AcceptLanguages,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	fs.currentUA = fs.pickUserAgent()
	fs.currentLang = fs.pickAcceptLanguage()
	fs.rotatedAt = time.Now()
	return fs
}

// Snapshot is the fingerprint values to apply to a single request,
// along with whether this call caused a rotation (for audit logging).
type Snapshot struct {
	UserAgent      string
	AcceptLanguage string
	StripReferer   bool
	Rotated        bool
	Mode           config.RotationMode

	RandomizeUserAgent      bool
	RandomizeAcceptLanguage bool
}

// Current returns the fingerprint to apply to the next request,
// rotating first if the configured rotation policy calls for it.
func (fs *FingerprintState) Current() Snapshot {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	rotated := fs.rotateIfDueLocked()

	return Snapshot{
		UserAgent:               fs.currentUA,
		AcceptLanguage:          fs.currentLang,
		StripReferer:            fs.stripReferer,
		Rotated:                 rotated,
		Mode:                    fs.mode,
		RandomizeUserAgent:      fs.randomizeUA,
		RandomizeAcceptLanguage: fs.randomizeLang,
	}
}

func (fs *FingerprintState) rotateIfDueLocked() bool {
	switch fs.mode {
	case config.RotationEveryRequest:
		fs.rotateLocked()
		return true
	case config.RotationInterval:
		if fs.interval > 0 && time.Since(fs.rotatedAt) >= fs.interval {
			fs.rotateLocked()
			return true
		}
		return false
	case config.RotationLaunch:
		return false
	default:
		return false
	}
}

func (fs *FingerprintState) rotateLocked() {
	if fs.randomizeUA {
		fs.currentUA = fs.pickUserAgent()
	}
	if fs.randomizeLang {
		fs.currentLang = fs.pickAcceptLanguage()
	}
	fs.rotatedAt = time.Now()
}

func (fs *FingerprintState) pickUserAgent() string {
	return defaultUserAgents[fs.rng.Intn(len(defaultUserAgents))]
}

func (fs *FingerprintState) pickAcceptLanguage() string {
	if len(fs.languages) == 0 {
		return fallbackAcceptLanguage
	}
	return fs.languages[fs.rng.Intn(len(fs.languages))]
}
