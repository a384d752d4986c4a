package profile

// Snapshot is the persisted form of a Profile. Zero values stand in for
// any field missing from older stored profiles, so loading partial data
// never fails.
type Snapshot struct {
	Buckets                map[string]BucketSnapshot  `json:"buckets"`
	TotalValidations       int                        `json:"total_validations"`
	TotalRejections        int                        `json:"total_rejections"`
	LongestValidatedStreak int                        `json:"longest_validated_streak"`
	UserBias               float64                    `json:"user_bias"`
	ImplicitTrustEnabled   bool                       `json:"implicit_trust_enabled"`
	Projects               map[string]ProjectSnapshot `json:"project_modifiers"`
}

type BucketSnapshot struct {
	Min       int `json:"min"`
	Max       int `json:"max"`
	Total     int `json:"total"`
	Validated int `json:"validated"`
}

type ProjectSnapshot struct {
	TotalValidations int     `json:"total_validations"`
	TotalRejections  int     `json:"total_rejections"`
	AvgValidatedIdle float64 `json:"avg_validated_idle"`
	SessionCount     int     `json:"session_count"`
	TotalWorkTime    int     `json:"total_work_time"`
}

func (p *Profile) Snapshot() Snapshot {
	snap := Snapshot{
		Buckets:                map[string]BucketSnapshot{},
		TotalValidations:       p.totalValidations,
		TotalRejections:        p.totalRejections,
		LongestValidatedStreak: p.longestStreak,
		UserBias:               p.userBias,
		ImplicitTrustEnabled:   p.implicitTrust,
		Projects:               map[string]ProjectSnapshot{},
	}
	for _, b := range p.buckets {
		snap.Buckets[b.Key()] = BucketSnapshot{
			Min:       b.MinSeconds,
			Max:       b.MaxSeconds,
			Total:     b.TotalCount,
			Validated: b.ValidatedCount,
		}
	}
	for key, mod := range p.projects {
		snap.Projects[key] = ProjectSnapshot{
			TotalValidations: mod.TotalValidations,
			TotalRejections:  mod.TotalRejections,
			AvgValidatedIdle: mod.AvgValidatedIdle,
			SessionCount:     mod.SessionCount,
			TotalWorkTime:    mod.TotalWorkTime,
		}
	}
	return snap
}

// Restore overlays a snapshot onto the profile. Bucket keys that no
// longer match the fixed ranges are dropped; missing fields keep their
// defaults.
func (p *Profile) Restore(snap Snapshot) {
	for _, b := range p.buckets {
		if data, ok := snap.Buckets[b.Key()]; ok {
			b.TotalCount = data.Total
			b.ValidatedCount = data.Validated
			if b.ValidatedCount > b.TotalCount {
				b.ValidatedCount = b.TotalCount
			}
		}
	}
	p.totalValidations = snap.TotalValidations
	p.totalRejections = snap.TotalRejections
	p.longestStreak = snap.LongestValidatedStreak
	p.SetUserBias(snap.UserBias)
	p.implicitTrust = snap.ImplicitTrustEnabled
	for key, data := range snap.Projects {
		avg := data.AvgValidatedIdle
		if avg == 0 {
			avg = 300
		}
		p.projects[key] = &ProjectModifier{
			TotalValidations: data.TotalValidations,
			TotalRejections:  data.TotalRejections,
			AvgValidatedIdle: avg,
			SessionCount:     data.SessionCount,
			TotalWorkTime:    data.TotalWorkTime,
		}
	}
}
