package main

// ── Combo value ─────────────────────────────────────────────────────

// prefixEffects summarises the effects active among a combo prefix.
type prefixEffects struct {
	additional int
	doubled    bool
	rerolls    int
	convert    *Reward
}

func collectEffects(mods []*Modifier) prefixEffects {
	var pe prefixEffects
	for _, m := range mods {
		if m.Effect == nil {
			continue
		}
		switch m.Effect.Kind {
		case EffectAdditionalReward:
			pe.additional++
		case EffectDoubledReward:
			pe.doubled = true
		case EffectReroll:
			pe.rerolls += m.Effect.Count
		case EffectConvert:
			to := m.Effect.To
			pe.convert = &to // last conversion wins
		}
	}
	return pe
}

// prefixRewards unions the rewards of mods; a later modifier's entry for a
// reward replaces an earlier one. A conversion collapses every quantity into
// the target reward. present marks the rewards that take part in the sum,
// including zero-count entries.
func prefixRewards(mods []*Modifier, convert *Reward) (rewards [rewardCount]int, present [rewardCount]bool) {
	for _, m := range mods {
		for r, n := range m.Rewards {
			rewards[r] = n
			present[r] = true
		}
	}
	if convert == nil {
		return rewards, present
	}
	total := 0
	for r := range rewards {
		total += rewards[r]
	}
	rewards, present = [rewardCount]int{}, [rewardCount]bool{}
	rewards[*convert] = total
	present[*convert] = true
	return rewards, present
}

func prefixValue(mods []*Modifier) float32 {
	pe := collectEffects(mods)
	rewards, present := prefixRewards(mods, pe.convert)

	doubled := float32(1)
	if pe.doubled {
		doubled = 2
	}
	reroll := float32(1.0 + float64(pe.rerolls)*RerollMultiplier)

	var v float32
	for r := Reward(0); r < rewardCount; r++ {
		if !present[r] {
			continue
		}
		v += float32(rewardValues[r]) * float32(rewards[r]+pe.additional) * doubled * reroll
	}
	return v
}

// PrefixValues returns the value of every prefix of combo, shortest first.
func PrefixValues(c *Catalog, combo []ModifierID) []float32 {
	mods := make([]*Modifier, 0, len(combo))
	values := make([]float32, 0, len(combo))
	for _, id := range combo {
		mods = append(mods, c.Modifier(id))
		values = append(values, prefixValue(mods))
	}
	return values
}

// ComboValue scores an ordered combo as the sum of the values of all of its
// prefixes, so modifiers placed early count more than once.
func ComboValue(c *Catalog, combo []ModifierID) float32 {
	var total float32
	for _, v := range PrefixValues(c, combo) {
		total += v
	}
	return total
}
