package registry

// IssueType classifies one integrity finding.
type IssueType string

const (
	IssueMissingID     IssueType = "MISSING_ID"
	IssueInvalidFormat IssueType = "INVALID_FORMAT"
	IssueDuplicateID   IssueType = "DUPLICATE_ID"
)

// Severity of an integrity issue.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Issue is one integrity finding.
type Issue struct {
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	DocID    string    `json:"docId,omitempty"`
	PacNo    string    `json:"pacNo,omitempty"`
	Value    string    `json:"value,omitempty"`
	Count    int       `json:"count,omitempty"`
}

// IntegrityReport is the itemized issue list plus aggregate counts.
type IntegrityReport struct {
	Issues        []Issue `json:"issues"`
	Total         int     `json:"total"`
	MissingID     int     `json:"missingId"`
	InvalidFormat int     `json:"invalidFormat"`
	Duplicates    int     `json:"duplicates"`
}

// CheckIntegrity scans the current snapshot and classifies every record.
// It only reports; correction happens exclusively through remediation jobs.
// It never fails: an empty snapshot yields an empty report.
func (e *Engine) CheckIntegrity() IntegrityReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	var rep IntegrityReport

	for _, r := range e.records {
		switch {
		case r.DeleteViewID == "":
			rep.Issues = append(rep.Issues, Issue{
				Type:     IssueMissingID,
				Severity: SeverityCritical,
				DocID:    r.DocID,
				PacNo:    r.PacNo,
			})
			rep.MissingID++
		case !e.cfg.Format.Valid(r.DeleteViewID):
			rep.Issues = append(rep.Issues, Issue{
				Type:     IssueInvalidFormat,
				Severity: SeverityWarning,
				DocID:    r.DocID,
				PacNo:    r.PacNo,
				Value:    r.DeleteViewID,
			})
			rep.InvalidFormat++
		}
	}

	for _, id := range e.idOrder {
		if c := e.dupCounts[id]; c > 1 {
			rep.Issues = append(rep.Issues, Issue{
				Type:     IssueDuplicateID,
				Severity: SeverityCritical,
				Value:    id,
				Count:    c,
			})
			rep.Duplicates++
		}
	}

	rep.Total = len(rep.Issues)
	if rep.Total > 0 {
		e.log.Warnw("integrity issues found",
			"total", rep.Total,
			"missing_id", rep.MissingID,
			"invalid_format", rep.InvalidFormat,
			"duplicates", rep.Duplicates,
		)
	}
	return rep
}
