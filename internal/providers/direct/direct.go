// Package direct resolves episodes straight from their numeric internal id
// into an embedded-player wrapper URL.
package direct

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/justchokingaround/watchengine/internal/providers"
)

// Adapter is the direct-manifest provider
type Adapter struct {
	PlayerURL string
}

var _ providers.Adapter = (*Adapter)(nil)

// New creates a direct adapter for the given player base URL
func New(playerURL string) *Adapter {
	return &Adapter{PlayerURL: strings.TrimRight(playerURL, "/")}
}

func (a *Adapter) Kind() providers.Kind {
	return providers.KindDirectManifest
}

func (a *Adapter) Name() string {
	return "Direct"
}

// Resolve builds <player>/<id>/<sub|dub>, with ?t=<seconds> when a resume position is known
func (a *Adapter) Resolve(ctx context.Context, req providers.ResolveRequest) (*providers.StreamDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, providers.NewResolutionError(a.Kind(), providers.ReasonTransport, err)
	}

	id, err := strconv.Atoi(strings.TrimSpace(req.Episode.EpisodeID))
	if err != nil || id <= 0 {
		return nil, providers.NewResolutionError(a.Kind(), providers.ReasonMissingIdentifier,
			fmt.Errorf("episode id %q is not numeric", req.Episode.EpisodeID))
	}

	playerURL := fmt.Sprintf("%s/%d/%s", a.PlayerURL, id, req.EffectiveLanguage())
	if seconds := int(req.ResumeAt); seconds > 0 {
		playerURL += "?" + url.Values{"t": {strconv.Itoa(seconds)}}.Encode()
	}

	return &providers.StreamDescriptor{
		Provider: a.Kind(),
		Sources: []providers.VariantSource{{
			URL:              playerURL,
			IsEmbeddedPlayer: true,
		}},
	}, nil
}
