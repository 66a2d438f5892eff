package geocaching

import (
	"context"
	"fmt"

	"github.com/FranksOps/gcparser/internal/extract"
	"github.com/FranksOps/gcparser/internal/scraper"
)

const profileURL = "/account/editprofiledetails.aspx"

// ProfileUpdater replaces the free-text details of the account profile.
type ProfileUpdater struct {
	deps Deps
	text string
}

// NewProfileUpdater returns an updater that will store text.
func NewProfileUpdater(d Deps, text string) *ProfileUpdater {
	return &ProfileUpdater{deps: d.withDefaults("profileedit"), text: text}
}

// Save loads the edit form and posts it back with the new text.
func (p *ProfileUpdater) Save(ctx context.Context) error {
	page, err := p.deps.Fetcher.Fetch(ctx, scraper.Request{URL: profileURL, Authenticate: true})
	if err != nil {
		return fmt.Errorf("fetch profile form: %w", err)
	}

	form := extract.HiddenFields(page.Body)
	form.Set(profileDetailsField, p.text)
	form.Set(profileSaveField, profileSaveValue)

	if _, err := p.deps.Fetcher.Fetch(ctx, scraper.Request{URL: profileURL, Authenticate: true, Form: form}); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	p.deps.Logger.Info("profile updated", "length", len(p.text))
	return nil
}

// Parse implements Parser. It saves the profile and yields no records.
func (p *ProfileUpdater) Parse(ctx context.Context) ([]Record, error) {
	return nil, p.Save(ctx)
}
