package snapshot

import "sort"

// ComputeDeltas diffs the current document against the previous one,
// producing the structural diff described in §4.6/§6: gate flips, new and
// resolved resolution-queue issues, health-color changes, domain-level
// changes, and AR aging-bucket transitions. A nil previous document (first
// cycle) yields an empty Deltas, not a diff against a zero value.
func ComputeDeltas(current, previous *Document) Deltas {
	if previous == nil {
		return Deltas{}
	}

	var d Deltas

	prevIssues := make(map[string]bool, len(previous.IssueKeys))
	for _, k := range previous.IssueKeys {
		prevIssues[k] = true
	}
	currIssues := make(map[string]bool, len(current.IssueKeys))
	for _, k := range current.IssueKeys {
		currIssues[k] = true
		if !prevIssues[k] {
			d.NewIssues = append(d.NewIssues, k)
		}
	}
	for _, k := range previous.IssueKeys {
		if !currIssues[k] {
			d.ResolvedIssues = append(d.ResolvedIssues, k)
		}
	}
	sort.Strings(d.NewIssues)
	sort.Strings(d.ResolvedIssues)

	for gate, now := range current.Gates {
		was, ok := previous.Gates[gate]
		if ok && was.Pass != now.Pass {
			d.GateFlips = append(d.GateFlips, GateFlip{Gate: gate, WasPass: was.Pass, NowPass: now.Pass})
		}
	}

	prevHealth := make(map[string]string, len(previous.Delivery))
	for _, p := range previous.Delivery {
		prevHealth[p.ProjectID] = p.HealthColor
	}
	for _, p := range current.Delivery {
		if was, ok := prevHealth[p.ProjectID]; ok && was != p.HealthColor {
			d.HealthColorChanges = append(d.HealthColorChanges, HealthColorChange{
				ProjectID: p.ProjectID, From: was, To: p.HealthColor,
			})
		}
	}

	for domain, now := range current.DomainConfidence {
		was, ok := previous.DomainConfidence[domain]
		if ok && was != now {
			d.DomainLevelChanges = append(d.DomainLevelChanges, DomainLevelChange{
				Domain: domain, From: string(was), To: string(now),
			})
		}
	}

	prevAging := make(map[string]string, len(previous.Clients))
	for _, c := range previous.Clients {
		prevAging[c.ClientID] = c.ARAgingBucket
	}
	for _, c := range current.Clients {
		if was, ok := prevAging[c.ClientID]; ok && was != c.ARAgingBucket {
			d.ARBucketTransitions = append(d.ARBucketTransitions, ARBucketTransition{
				ClientID: c.ClientID, From: was, To: c.ARAgingBucket,
			})
		}
	}

	return d
}
