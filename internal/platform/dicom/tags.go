// Package dicom holds the small amount of DICOM tag handling the ingestion
// pipeline needs: reading values out of an archive's simplified tag map,
// normalizing person names, and converting compact DICOM dates.
package dicom

import (
	"fmt"
	"strings"
	"time"
)

// Tags is the decoded simplified-tags document for one instance. Values are
// usually plain strings, but some archives emit structured values (notably
// person names as {"Alphabetic": "..."}).
type Tags map[string]any

// Well-known tag names used by the pipeline.
const (
	TagPatientID        = "PatientID"
	TagPatientName      = "PatientName"
	TagPatientSex       = "PatientSex"
	TagPatientBirthDate = "PatientBirthDate"
	TagStudyInstanceUID = "StudyInstanceUID"
	TagSOPInstanceUID   = "SOPInstanceUID"
	TagAccessionNumber  = "AccessionNumber"
	TagStudyDate        = "StudyDate"
	TagStudyTime        = "StudyTime"
	TagStudyDescription = "StudyDescription"
	TagModality         = "Modality"
)

// String returns the tag's value when it is a plain string, or "" otherwise.
func (t Tags) String(key string) string {
	if v, ok := t[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// PersonName returns the tag's value as a display name. DICOM person names
// arrive either as plain strings or as a structured form whose "Alphabetic"
// component uses ^ to separate name parts; the separators become spaces.
func (t Tags) PersonName(key string) string {
	switch v := t[key].(type) {
	case string:
		return normalizePersonName(v)
	case map[string]any:
		if alpha, ok := v["Alphabetic"].(string); ok {
			return normalizePersonName(alpha)
		}
	}
	return ""
}

func normalizePersonName(raw string) string {
	name := strings.ReplaceAll(raw, "^", " ")
	return strings.Join(strings.Fields(name), " ")
}

// NormalizeDate converts a compact 8-digit DICOM date (YYYYMMDD) to an ISO
// calendar date. Malformed input yields "".
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) != 8 {
		return ""
	}
	parsed, err := time.Parse("20060102", raw)
	if err != nil {
		return ""
	}
	return parsed.Format("2006-01-02")
}

// DerivedArchiveID builds the synthetic archive study identifier used when a
// study is first seen via an instance notification and the archive's own
// study id is not yet known.
func DerivedArchiveID(studyUID string) string {
	return fmt.Sprintf("DERIVED_%s", strings.ReplaceAll(studyUID, ".", "_"))
}
