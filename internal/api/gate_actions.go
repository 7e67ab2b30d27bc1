// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ManuGH/cinegate/internal/adgate"
	"github.com/ManuGH/cinegate/internal/catalog"
)

// Gated action names as they appear in /api/gate/actions/{action}.
const (
	ActionDownload        = "download"
	ActionStream          = "stream"
	ActionEpisodeDownload = "episode-download"
	ActionExternal        = "external"
	ActionAssist          = "assist"
)

var errEffectFailed = errors.New("gated effect failed")

// defaultKinds is the ad each action shows unless the client asks for another.
var defaultKinds = map[string]adgate.Kind{
	ActionDownload:        adgate.KindButton,
	ActionEpisodeDownload: adgate.KindButton,
	ActionAssist:          adgate.KindButton,
	ActionStream:          adgate.KindVideo,
	ActionExternal:        adgate.KindVideo,
}

type actionRequest struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

func contentTypeOf(action string) string {
	switch action {
	case ActionEpisodeDownload:
		return string(catalog.ContentSeries)
	case ActionAssist:
		return ""
	}
	return string(catalog.ContentMovie)
}

// gatedAction binds an action name and its target to a catalog effect.
func (s *Server) gatedAction(name string, in actionRequest) (adgate.GatedAction, error) {
	kind, ok := defaultKinds[name]
	if !ok {
		return adgate.GatedAction{}, fmt.Errorf("%w: unknown action %q", errBadRequest, name)
	}
	if in.Kind != "" {
		k, err := adgate.ParseKind(in.Kind)
		if err != nil {
			return adgate.GatedAction{}, err
		}
		kind = k
	}
	if name != ActionAssist && in.ID == "" {
		return adgate.GatedAction{}, fmt.Errorf("%w: id is required", errBadRequest)
	}

	var effect adgate.Effect
	cat := s.deps.Catalog
	switch name {
	case ActionDownload:
		effect = func(ctx context.Context) (any, error) {
			link, err := cat.DownloadURL(ctx, in.ID)
			if err != nil {
				return nil, err
			}
			return envelope{"downloadUrl": link.URL, "title": link.Title}, nil
		}
	case ActionStream:
		effect = func(ctx context.Context) (any, error) {
			link, err := cat.StreamURL(ctx, in.ID)
			if err != nil {
				return nil, err
			}
			return envelope{"streamUrl": link.URL, "title": link.Title}, nil
		}
	case ActionEpisodeDownload:
		effect = func(ctx context.Context) (any, error) {
			link, err := cat.EpisodeDownloadURL(ctx, in.ID)
			if err != nil {
				return nil, err
			}
			return envelope{"downloadUrl": link.URL, "title": link.Title}, nil
		}
	case ActionExternal:
		effect = func(ctx context.Context) (any, error) {
			m, err := cat.GetMovie(ctx, in.ID)
			if err != nil {
				return nil, err
			}
			return envelope{"externalUrl": m.ExternalURL, "title": m.Title}, nil
		}
	case ActionAssist:
		effect = func(context.Context) (any, error) {
			u := s.deps.Config().Gate.AssistURL
			if u == "" {
				return nil, fmt.Errorf("assisted download is not configured: %w", catalog.ErrNotFound)
			}
			return envelope{"assistUrl": u}, nil
		}
	}

	return adgate.GatedAction{Name: name, Kind: kind, Effect: classifyEffect(effect)}, nil
}

// classifyEffect marks effect failures other than a missing record so they
// surface as a bad gateway rather than a server fault.
func classifyEffect(e adgate.Effect) adgate.Effect {
	return func(ctx context.Context) (any, error) {
		v, err := e(ctx)
		if err != nil && !errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", errEffectFailed, err)
		}
		return v, err
	}
}

// decodeOptionalJSON is decodeJSON for bodies that may be absent.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if err := decodeJSON(w, r, dst); err != nil && !errors.Is(err, errEmptyBody) {
		return err
	}
	return nil
}
