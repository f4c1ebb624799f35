package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func relaxedConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// ReadInfo parses the document's structure and returns page count,
// per-page media box dimensions, and rotations. It reads through the
// supplied reader, so a recording reader captures exactly the byte
// ranges structural parsing needs.
func ReadInfo(rs Reader) (*Info, error) {
	ctx, err := api.ReadContext(rs, relaxedConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF structure: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to validate PDF: %w", err)
	}

	info := &Info{PageCount: ctx.PageCount}
	info.Pages = make([]PageInfo, 0, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		_, _, inherited, err := ctx.PageDict(pageNr, false)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve page %d: %w", pageNr, err)
		}
		page := PageInfo{}
		if inherited != nil && inherited.MediaBox != nil {
			page.Width = inherited.MediaBox.Width()
			page.Height = inherited.MediaBox.Height()
		}
		if inherited != nil {
			page.Rotation = NormalizeRotation(inherited.Rotate)
		}
		info.Pages = append(info.Pages, page)
	}
	return info, nil
}
