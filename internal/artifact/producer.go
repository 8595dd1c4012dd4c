// Package artifact renders the visual certificate artwork attached to a
// minted achievement. Producers never fail: any rendering problem degrades
// to a metadata-only fallback so issuance can always proceed.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"go.uber.org/zap"

	"github.com/impactpool/milestone-cli/internal/model"
)

// Artifact is the rendered certificate artwork. When Fallback is true the
// image could not be produced and only the descriptive fields are carried.
type Artifact struct {
	Image    []byte
	MIME     string
	Citation string
	Fallback bool
}

// Producer renders an artifact for an achievement. Implementations must not
// return errors; degraded output is reported through the Fallback flag.
type Producer interface {
	Produce(ctx context.Context, a model.ClaimableAchievement) Artifact
}

var tierColors = map[model.Tier]string{
	model.TierBronze:   "#cd7f32",
	model.TierSilver:   "#c0c0c0",
	model.TierGold:     "#ffd700",
	model.TierPlatinum: "#e5e4e2",
}

var certificateSVG = template.Must(template.New("certificate").Parse(`<svg xmlns="http://www.w3.org/2000/svg" width="600" height="400" viewBox="0 0 600 400">
  <rect width="600" height="400" fill="#1a1a2e"/>
  <rect x="20" y="20" width="560" height="360" fill="none" stroke="{{.Color}}" stroke-width="4"/>
  <text x="300" y="120" text-anchor="middle" fill="{{.Color}}" font-size="28" font-family="serif">{{.Title}}</text>
  <text x="300" y="190" text-anchor="middle" fill="#ffffff" font-size="20" font-family="serif">{{.Subject}}</text>
  <text x="300" y="250" text-anchor="middle" fill="#ffffff" font-size="16" font-family="serif">{{.Detail}}</text>
  <text x="300" y="330" text-anchor="middle" fill="{{.Color}}" font-size="14" font-family="serif">{{.Footer}}</text>
</svg>`))

// SVGProducer renders certificates locally as SVG documents.
type SVGProducer struct{}

func NewSVG() *SVGProducer {
	return &SVGProducer{}
}

func (p *SVGProducer) Produce(_ context.Context, a model.ClaimableAchievement) Artifact {
	detail := fmt.Sprintf("%s milestone reached: %s", a.Tier, model.FormatAmount(a.Threshold))
	footer := "Impact Pool Certificate"
	if a.Metadata.CharityName != "" {
		footer = "Benefiting " + a.Metadata.CharityName
	}

	var buf bytes.Buffer
	err := certificateSVG.Execute(&buf, map[string]string{
		"Color":   tierColors[a.Tier],
		"Title":   fmt.Sprintf("%s Achievement", titleCase(string(a.Tier))),
		"Subject": a.Metadata.SubjectName(),
		"Detail":  detail,
		"Footer":  footer,
	})
	if err != nil {
		zap.L().Warn("svg render failed, degrading to metadata-only artifact",
			zap.String("achievement", a.ID),
			zap.Error(err))
		return Artifact{Citation: detail, Fallback: true}
	}

	return Artifact{
		Image:    buf.Bytes(),
		MIME:     "image/svg+xml",
		Citation: detail,
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
