package trac

import (
	"errors"
	"strings"
	"testing"
)

const listingPage = `<html><body>
<div id="banner"><a href="/wiki/IgnoredBeforeRegion">nav</a></div>
<div id="wikipage">
  <ul>
    <li><a href="/wiki/WikiStart?version=4">WikiStart</a></li>
    <li><a href="/wiki/WikiStart?version=2">older edit</a></li>
    <li><a href="/wiki/ProjectPlan">ProjectPlan</a></li>
    <li><a href="/wiki/Sub/Page?version=3">nested name</a></li>
    <li><a href="/ticket/42">not a wiki link</a></li>
    <img src="x.png"><br>
  </ul>
</div>
<div><a href="/wiki/AfterRegion?version=9">outside the region</a></div>
</body></html>`

func TestParseVersionLinks(t *testing.T) {
	t.Parallel()

	facts, err := ParseVersionLinks(strings.NewReader(listingPage), AnchorID("wikipage"), "/wiki/")
	if err != nil {
		t.Fatalf("ParseVersionLinks: %v", err)
	}

	want := []Fact{
		{Name: "ProjectPlan", Version: 1},
		{Name: "Sub/Page", Version: 3},
		{Name: "WikiStart", Version: 4},
	}

	if len(facts) != len(want) {
		t.Fatalf("facts = %+v, want %+v", facts, want)
	}

	for i := range want {
		if facts[i] != want[i] {
			t.Errorf("facts[%d] = %+v, want %+v", i, facts[i], want[i])
		}
	}
}

func TestParseVersionLinksByClass(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<div class="trac-modifiedby">
  Version <a href="/wiki/WikiStart?version=7">7</a> by admin
</div>
</body></html>`

	facts, err := ParseVersionLinks(strings.NewReader(page), AnchorClass("trac-modifiedby"), "/wiki/")
	if err != nil {
		t.Fatalf("ParseVersionLinks: %v", err)
	}

	if len(facts) != 1 || facts[0] != (Fact{Name: "WikiStart", Version: 7}) {
		t.Errorf("facts = %+v", facts)
	}
}

func TestParseVersionLinksMissingRegion(t *testing.T) {
	t.Parallel()

	_, err := ParseVersionLinks(strings.NewReader("<html><body>nothing</body></html>"),
		AnchorID("wikipage"), "/wiki/")

	var scrapeErr *ScrapeError
	if !errors.As(err, &scrapeErr) {
		t.Fatalf("error = %v, want ScrapeError", err)
	}
}

func TestParseVersionLinksEscapedNames(t *testing.T) {
	t.Parallel()

	page := `<div id="wikipage"><a href="/wiki/Caf%C3%A9Menu?version=2">menu</a></div>`

	facts, err := ParseVersionLinks(strings.NewReader(page), AnchorID("wikipage"), "/wiki/")
	if err != nil {
		t.Fatalf("ParseVersionLinks: %v", err)
	}

	if len(facts) != 1 || facts[0].Name != "CaféMenu" {
		t.Errorf("facts = %+v", facts)
	}
}

func TestParseVersionLinksVoidElementsDoNotSkewDepth(t *testing.T) {
	t.Parallel()

	// The img and br tags never close; if they counted toward depth the
	// region would end early and the second link would be lost.
	page := `<div id="wikipage">
  <img src="a.png"><br>
  <a href="/wiki/First">1</a>
  <a href="/wiki/Second">2</a>
</div>`

	facts, err := ParseVersionLinks(strings.NewReader(page), AnchorID("wikipage"), "/wiki/")
	if err != nil {
		t.Fatalf("ParseVersionLinks: %v", err)
	}

	if len(facts) != 2 {
		t.Errorf("facts = %+v, want both links", facts)
	}
}

const editFormPage = `<html><body>
<form id="search"><input name="q" value="leftover"></form>
<form id="edit" method="post" action="/wiki/WikiStart">
  <input type="hidden" name="__FORM_TOKEN" value="abc123">
  <input type="hidden" name="version" value="4">
  <textarea name="text">current page
content</textarea>
  <input type="text" name="comment" value="">
  <input type="submit" name="save" value="Submit changes">
  <input type="submit" name="preview" value="Preview">
  <input type="submit" name="cancel" value="Cancel">
</form>
</body></html>`

func TestParseFormFields(t *testing.T) {
	t.Parallel()

	exclude := map[string]bool{"cancel": true, "preview": true, "diff": true, "merge": true}

	fields, err := ParseFormFields(strings.NewReader(editFormPage), "edit", exclude)
	if err != nil {
		t.Fatalf("ParseFormFields: %v", err)
	}

	if got := fields.Get("__FORM_TOKEN"); got != "abc123" {
		t.Errorf("__FORM_TOKEN = %q", got)
	}

	if got := fields.Get("version"); got != "4" {
		t.Errorf("version = %q", got)
	}

	if got := fields.Get("text"); got != "current page\ncontent" {
		t.Errorf("text = %q", got)
	}

	if got := fields.Get("save"); got != "Submit changes" {
		t.Errorf("save = %q", got)
	}

	for _, name := range []string{"preview", "cancel", "q"} {
		if fields.Has(name) {
			t.Errorf("field %q should not be harvested", name)
		}
	}
}

func TestParseFormFieldsMissingForm(t *testing.T) {
	t.Parallel()

	_, err := ParseFormFields(strings.NewReader("<html><body></body></html>"), "edit", nil)

	var scrapeErr *ScrapeError
	if !errors.As(err, &scrapeErr) {
		t.Fatalf("error = %v, want ScrapeError", err)
	}

	if !strings.Contains(scrapeErr.Error(), "edit") {
		t.Errorf("error %q does not name the form", scrapeErr.Error())
	}
}
