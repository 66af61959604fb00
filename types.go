package main

import (
	"fmt"
	"strconv"
)

// QueueLength is the number of slots in the crafting queue.
const QueueLength = 4

// RerollMultiplier is the value bonus granted per reroll.
const RerollMultiplier = 0.25

type ModifierID uint8

// MarshalJSON keeps id slices as JSON arrays instead of base64 strings.
func (id ModifierID) MarshalJSON() ([]byte, error) {
	return strconv.AppendUint(nil, uint64(id), 10), nil
}

type Reward int

const (
	RewardGeneric Reward = iota
	RewardArmour
	RewardWeapon
	RewardJewelry
	RewardGem
	RewardMap
	RewardDivinationCard
	RewardFragment
	RewardEssence
	RewardHarbinger
	RewardUnique
	RewardDelve
	RewardBlight
	RewardRitual
	RewardCurrency
	RewardLegion
	RewardBreach
	RewardLabyrinth
	RewardScarab
	RewardAbyss
	RewardHeist
	RewardExpedition
	RewardDelirium
	RewardMetamorph
	RewardTreant

	rewardCount
)

var rewardNames = [rewardCount]string{
	"Generic", "Armour", "Weapon", "Jewelry", "Gem", "Map", "DivinationCard",
	"Fragment", "Essence", "Harbinger", "Unique", "Delve", "Blight", "Ritual",
	"Currency", "Legion", "Breach", "Labyrinth", "Scarab", "Abyss", "Heist",
	"Expedition", "Delirium", "Metamorph", "Treant",
}

// rewardValues holds the base value of one unit of each reward, indexed by Reward.
var rewardValues = [rewardCount]uint32{
	RewardGeneric:        1,
	RewardArmour:         1,
	RewardWeapon:         1,
	RewardJewelry:        1,
	RewardGem:            5,
	RewardMap:            10,
	RewardDivinationCard: 25,
	RewardFragment:       10,
	RewardEssence:        5,
	RewardHarbinger:      25,
	RewardUnique:         10,
	RewardDelve:          5,
	RewardBlight:         5,
	RewardRitual:         5,
	RewardCurrency:       25,
	RewardLegion:         10,
	RewardBreach:         5,
	RewardLabyrinth:      5,
	RewardScarab:         25,
	RewardAbyss:          5,
	RewardHeist:          5,
	RewardExpedition:     10,
	RewardDelirium:       10,
	RewardMetamorph:      5,
	RewardTreant:         1,
}

func (r Reward) String() string {
	if r < 0 || r >= rewardCount {
		return fmt.Sprintf("Reward(%d)", int(r))
	}
	return rewardNames[r]
}

// BaseValue returns the value of a single unit of the reward.
func (r Reward) BaseValue() uint32 {
	return rewardValues[r]
}

func parseReward(s string) (Reward, bool) {
	for i, name := range rewardNames {
		if name == s {
			return Reward(i), true
		}
	}
	return 0, false
}

type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectReroll
	EffectAdditionalReward
	EffectDoubledReward
	EffectConvert
)

func parseEffectKind(s string) EffectKind {
	switch s {
	case "Reroll":
		return EffectReroll
	case "AdditionalReward":
		return EffectAdditionalReward
	case "DoubledReward":
		return EffectDoubledReward
	case "Convert":
		return EffectConvert
	}
	return EffectNone
}

func (k EffectKind) String() string {
	switch k {
	case EffectReroll:
		return "Reroll"
	case EffectAdditionalReward:
		return "AdditionalReward"
	case EffectDoubledReward:
		return "DoubledReward"
	case EffectConvert:
		return "Convert"
	}
	return "None"
}

// Effect is a tagged union: Count is only meaningful for EffectReroll and
// To only for EffectConvert.
type Effect struct {
	Kind  EffectKind
	Count int
	To    Reward
}

func (e Effect) String() string {
	switch e.Kind {
	case EffectReroll:
		return fmt.Sprintf("Reroll(%d)", e.Count)
	case EffectConvert:
		return "Convert(" + e.To.String() + ")"
	}
	return e.Kind.String()
}

type Modifier struct {
	ID      ModifierID
	Name    string
	Recipe  []ModifierID // sorted ascending, empty for base modifiers
	Rewards map[Reward]int
	Effect  *Effect
}

// IsBase reports whether the modifier cannot be crafted from other modifiers.
func (m *Modifier) IsBase() bool {
	return len(m.Recipe) == 0
}

// Component is one entry of a modifier's recursive ingredient bag.
type Component struct {
	ID    ModifierID
	Count int
}

// Combo is an ordered sequence of at most QueueLength modifiers.
type Combo []ModifierID

// Stash maps a modifier to the number of copies the player owns.
type Stash map[ModifierID]int

// Queue holds the modifiers already committed to the crafting queue.
type Queue []ModifierID

func (s Stash) Count(id ModifierID) int {
	return s[id]
}

func (s Stash) Owns(id ModifierID) bool {
	return s[id] > 0
}

func (c Combo) Contains(id ModifierID) bool {
	for _, v := range c {
		if v == id {
			return true
		}
	}
	return false
}

// HasPrefix reports whether q is a literal prefix of c.
func (c Combo) HasPrefix(q Queue) bool {
	if len(q) > len(c) {
		return false
	}
	for i := range q {
		if c[i] != q[i] {
			return false
		}
	}
	return true
}

func (c Combo) Clone() Combo {
	if c == nil {
		return nil
	}
	out := make(Combo, len(c))
	copy(out, c)
	return out
}

func (q Queue) Clone() Queue {
	out := make(Queue, len(q))
	copy(out, q)
	return out
}

func (s Stash) Clone() Stash {
	out := make(Stash, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// NextModifier returns the modifier to add after the queued ones, reading
// combo[len(queue)].
func NextModifier(combo Combo, queue Queue) (ModifierID, bool) {
	if len(combo) <= len(queue) {
		return 0, false
	}
	return combo[len(queue)], true
}
