// Package arc reads stage progressions out of untyped case payloads.
//
// Case payloads are free-form JSON documents authored outside this system.
// Every accessor here tolerates missing or wrongly-typed fields and returns
// empty results instead of failing; callers never need to validate the
// payload shape first.
package arc

// Stage is one milestone in a case's scripted progression.
type Stage struct {
	ID    string
	Title string
}

// ExtractStages returns the ordered stage list under payload.arc.stages.
// Entries must be records with a non-empty string id; the title falls back
// to name, then to the id. Malformed payloads yield an empty list.
func ExtractStages(payload any) []Stage {
	stages := stageEntries(payload)
	if len(stages) == 0 {
		return nil
	}

	out := make([]Stage, 0, len(stages))
	for _, entry := range stages {
		record, ok := asRecord(entry)
		if !ok {
			continue
		}
		id := asString(record["id"])
		if id == "" {
			continue
		}
		title := asString(record["title"])
		if title == "" {
			title = asString(record["name"])
		}
		if title == "" {
			title = id
		}
		out = append(out, Stage{ID: id, Title: title})
	}
	return out
}

// StageIDs returns the ordered stage ids under payload.arc.stages.
func StageIDs(payload any) []string {
	stages := ExtractStages(payload)
	if len(stages) == 0 {
		return nil
	}
	ids := make([]string, 0, len(stages))
	for _, stage := range stages {
		ids = append(ids, stage.ID)
	}
	return ids
}

// TitleByID returns a stage id to title lookup for payload.arc.stages.
func TitleByID(payload any) map[string]string {
	titles := make(map[string]string)
	for _, stage := range ExtractStages(payload) {
		titles[stage.ID] = stage.Title
	}
	return titles
}

// PickInitialStageID returns the explicit arc.current_stage_id when present,
// otherwise the id of the first stage, otherwise the empty string.
func PickInitialStageID(payload any) string {
	record, ok := asRecord(payload)
	if !ok {
		return ""
	}
	arcRecord, ok := asRecord(record["arc"])
	if !ok {
		return ""
	}

	if explicit := asString(arcRecord["current_stage_id"]); explicit != "" {
		return explicit
	}

	// Strictly the first entry: a malformed head yields no initial stage.
	stages := stageEntries(payload)
	if len(stages) == 0 {
		return ""
	}
	first, ok := asRecord(stages[0])
	if !ok {
		return ""
	}
	return asString(first["id"])
}

// NextStageID returns the stage following completedID in the payload's
// ordered stage list, or the empty string when completedID is last or not
// present.
func NextStageID(payload any, completedID string) string {
	ids := StageIDs(payload)
	for idx, id := range ids {
		if id == completedID && idx+1 < len(ids) {
			return ids[idx+1]
		}
	}
	return ""
}

func stageEntries(payload any) []any {
	record, ok := asRecord(payload)
	if !ok {
		return nil
	}
	arcRecord, ok := asRecord(record["arc"])
	if !ok {
		return nil
	}
	stages, ok := arcRecord["stages"].([]any)
	if !ok {
		return nil
	}
	return stages
}

func asRecord(value any) (map[string]any, bool) {
	record, ok := value.(map[string]any)
	return record, ok
}

func asString(value any) string {
	s, _ := value.(string)
	return s
}
