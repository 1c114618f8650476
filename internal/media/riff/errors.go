package riff

import "errors"

var (
	errNotRIFF      = errors.New("not a RIFF/RIFX container")
	errNotAVI       = errors.New("RIFF form is not \"AVI \"")
	errNoMovi       = errors.New("no movi list found")
	errUnknownTrack = errors.New("unknown track id")
)
