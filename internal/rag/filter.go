package rag

import "github.com/qdrant/go-client/qdrant"

// buildFilter composes f into the Must-conditions shape §4.9 specifies:
// equality and "in" on project_id/source_type/source_name/document_id, plus
// an attachment_of presence check. Empty fields are simply omitted.
func buildFilter(f SearchFilter) *qdrant.Filter {
	var must []*qdrant.Condition

	switch {
	case f.ProjectID != "":
		must = append(must, matchKeyword("project_id", f.ProjectID))
	case len(f.ProjectIDs) > 0:
		must = append(must, matchKeywords("project_id", f.ProjectIDs))
	}
	switch {
	case f.SourceType != "":
		must = append(must, matchKeyword("source_type", f.SourceType))
	case len(f.SourceTypes) > 0:
		must = append(must, matchKeywords("source_type", f.SourceTypes))
	}
	if f.SourceName != "" {
		must = append(must, matchKeyword("source_name", f.SourceName))
	}
	if f.DocumentID != "" {
		must = append(must, matchKeyword("document_id", f.DocumentID))
	}
	if f.ParentDocumentID != "" {
		must = append(must, matchKeyword("attachment_of", f.ParentDocumentID))
	}

	var mustNot []*qdrant.Condition
	if f.Attachment != nil {
		empty := isEmpty("attachment_of")
		if *f.Attachment {
			mustNot = append(mustNot, empty)
		} else {
			must = append(must, empty)
		}
	}

	if len(must) == 0 && len(mustNot) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must, MustNot: mustNot}
}

func matchKeyword(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func matchKeywords(key string, values []string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keywords{Keywords: &qdrant.RepeatedStrings{Strings: values}}},
			},
		},
	}
}

func isEmpty(key string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_IsEmpty{
			IsEmpty: &qdrant.IsEmptyCondition{Key: key},
		},
	}
}
