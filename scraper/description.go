package scraper

// ExtractDescription returns the inner markup of the description body, which
// sits in the block right after the "İlan Açıklaması" heading or, failing
// that, in any block following it.
func ExtractDescription(container Node, tr *Trace) *string {
	heading, ok := Resolve(container, descriptionHeading...)
	if !ok {
		tr.NotFound("description", "heading not found")
		return nil
	}

	var inner Node
	if block, ok := Resolve(heading, descriptionBlock...); ok {
		inner, _ = Resolve(block, descriptionInner...)
	}
	if inner == nil {
		inner, _ = Resolve(heading, descriptionAnyInner...)
	}
	if inner == nil {
		tr.NotFound("description", "no content container after heading")
		return nil
	}

	html, err := inner.HTML()
	if err != nil {
		tr.ParseFailure("description", "read markup: %v", err)
		return nil
	}
	return &html
}
