package scraper

import "listing_detail/models"

// ExtractInfo reads the label/value rows of the information panel. Rows
// missing either half are skipped and labels outside models.InfoLabels are
// dropped; a later row with the same label wins.
func ExtractInfo(container Node, tr *Trace) map[models.FieldName]string {
	info := make(map[models.FieldName]string)

	rows := ResolveAll(container, infoRows...)
	if len(rows) == 0 {
		tr.NotFound("info", "no rows in information panel")
		return info
	}

	for _, row := range rows {
		keyNode, ok := Resolve(row, infoKey...)
		if !ok {
			continue
		}
		valueNode, ok := Resolve(row, infoValue...)
		if !ok {
			continue
		}
		if field, known := models.InfoLabels[nodeText(keyNode)]; known {
			info[field] = nodeText(valueNode)
		}
	}

	return info
}
