package scanner

import (
	"slices"

	"golang.org/x/time/rate"
)

// CameraAccess is what the client found when it asked for the camera.
type CameraAccess string

const (
	CameraGranted CameraAccess = "granted"
	CameraDenied  CameraAccess = "denied"
	CameraAbsent  CameraAccess = "absent"
	CameraBusy    CameraAccess = "busy"
)

// Decoder names understood by the client.
const (
	DecoderQRScanner = "qr-scanner"
	DecoderJSQR      = "jsqr"
	DecoderManual    = "manual"
)

// decoderPreference orders the camera decoders, best first.
var decoderPreference = []string{DecoderQRScanner, DecoderJSQR}

// Capabilities is the client's report of what it can scan with.
type Capabilities struct {
	Camera   CameraAccess `json:"camera"`
	Decoders []string     `json:"decoders"`
}

// Source is one way of producing candidate ids.
type Source interface {
	Kind() string
	// Camera reports whether the source delivers decode callbacks.
	Camera() bool
	// Allow reports whether another decode callback may be processed now.
	Allow() bool
}

type cameraSource struct {
	kind    string
	limiter *rate.Limiter
}

func (s *cameraSource) Kind() string { return s.kind }
func (s *cameraSource) Camera() bool { return true }
func (s *cameraSource) Allow() bool  { return s.limiter.Allow() }

type manualSource struct{}

func (manualSource) Kind() string { return DecoderManual }
func (manualSource) Camera() bool { return false }
func (manualSource) Allow() bool  { return true }

// selectSource picks the best camera decoder the client supports. Any failure leaves the
// caller to fall back to manual entry.
func selectSource(caps Capabilities, decodesPerSecond float64) (Source, error) {
	switch caps.Camera {
	case CameraGranted:
	case CameraDenied:
		return nil, ErrPermissionDenied
	case CameraBusy:
		return nil, ErrDeviceBusy
	default:
		return nil, ErrNoDevice
	}

	for _, kind := range decoderPreference {
		if slices.Contains(caps.Decoders, kind) {
			limit := rate.Inf
			if decodesPerSecond > 0 {
				limit = rate.Limit(decodesPerSecond)
			}
			return &cameraSource{kind: kind, limiter: rate.NewLimiter(limit, 1)}, nil
		}
	}
	return nil, ErrNoDecoder
}
