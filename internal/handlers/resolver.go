package handlers

import (
	"fmt"

	"github.com/skyloop/engine/internal/sequencer"
	"github.com/skyloop/engine/pkg/core"
)

// Resolve maps a video identity to a playable URL within the active
// location. The Service is the machine's Resolver: the asset index built
// at location load backs every lookup.
func (s *Service) Resolve(identity core.VideoIdentity) (string, error) {
	switch identity.Kind {
	case core.KindAerial:
		s.mu.RLock()
		url := s.aerialURL
		s.mu.RUnlock()
		if url == "" {
			return "", fmt.Errorf("%w: no aerial asset for active location", sequencer.ErrNoSource)
		}
		return url, nil

	case core.KindTransition:
		s.mu.RLock()
		url := s.transition
		s.mu.RUnlock()
		if url == "" {
			return "", fmt.Errorf("%w: no transition asset for active location", sequencer.ErrNoSource)
		}
		return url, nil

	case core.KindSequence:
		pl, ok := s.deps.Session.Playlist(identity.HotspotID)
		if !ok {
			return "", fmt.Errorf("%w: no playlist for hotspot %s", sequencer.ErrNoSource, identity.HotspotID)
		}
		ref := pl.AssetFor(identity.Stage)
		if ref == nil {
			return "", fmt.Errorf("%w: stage %s unassigned", sequencer.ErrNoSource, identity.Stage)
		}
		a, ok := s.asset(*ref)
		if !ok {
			return "", fmt.Errorf("%w: asset %s not indexed", sequencer.ErrNoSource, *ref)
		}
		return s.deps.Data.ResolveAccessURL(a.AccessURL), nil
	}
	return "", fmt.Errorf("%w: unknown identity kind %q", sequencer.ErrNoSource, identity.Kind)
}
