//go:build !darwin && !linux && !windows

package speech

import (
	"context"

	"go.aimuz.me/cliptrans/internal/types"
)

type noEngine struct{}

// NewSystemEngine returns an engine without voices.
func NewSystemEngine() Engine { return noEngine{} }

func (noEngine) Voices(context.Context) ([]types.Voice, error) { return nil, ErrUnavailable }

func (noEngine) Speak(context.Context, string, types.Voice) error { return ErrUnavailable }
