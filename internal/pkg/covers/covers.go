package covers

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cvele/playnite-web-mqtt/internal/pkg/config"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/contxt"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/publisher"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/registry"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/transcoder"
	"github.com/cvele/playnite-web-mqtt/pkg/digest"
)

const publishTimeout = time.Second * 5

// Pipeline turns raw cover payloads into platform-sized images. Repeated
// broadcasts of an identical cover are skipped by content digest, so
// transcoding and republishing happen at most once per distinct image.
type Pipeline struct {
	reg    *registry.Registry
	opts   transcoder.Options
	logger *zap.Logger
}

func New(reg *registry.Registry, imgCfg *config.ImageConfig) *Pipeline {
	return &Pipeline{
		reg: reg,
		opts: transcoder.Options{
			MaxSizeBytes:   imgCfg.MaxSizeBytes,
			MinQuality:     imgCfg.MinQuality,
			InitialQuality: imgCfg.InitialQuality,
		},
		logger: zap.L(),
	}
}

// HandleCover processes one inbound cover payload for id. An undecodable
// payload is reported and the previous cover, if any, stays in place.
func (p *Pipeline) HandleCover(id string, raw []byte) error {
	dig := digest.Sum(raw)
	if game, ok := p.reg.Get(id); ok && game.CoverDigest == dig {
		p.logger.Debug("cover unchanged, skipping",
			zap.String("game_id", id), zap.String("digest", dig))
		return nil
	}

	res, err := transcoder.Compress(raw, p.opts)
	if err != nil {
		if errors.Is(err, transcoder.ErrUnsupportedImage) {
			p.logger.Error("undecodable cover, previous cover retained",
				zap.String("game_id", id), zap.Int("bytes", len(raw)), zap.Error(err))
		}
		return err
	}
	if res.SizeExceeded {
		p.logger.Warn("cover exceeds size budget even at floor quality, publishing anyway",
			zap.String("game_id", id),
			zap.Int("bytes", len(res.Bytes)),
			zap.Int("budget", p.opts.MaxSizeBytes),
			zap.Int("quality", res.Quality))
	}

	p.reg.UpsertCover(id, dig)
	game, _ := p.reg.Get(id)

	p.logger.Debug("cover transcoded",
		zap.String("game_id", id),
		zap.Int("raw_bytes", len(raw)),
		zap.Int("compressed_bytes", len(res.Bytes)),
		zap.Int("quality", res.Quality),
		zap.Int("attempts", res.Attempts))

	publisher.PublishCover(contxt.NewContext(publishTimeout), game, res.Bytes)
	return nil
}
