package worldstate

// GiftResult is what evaluating an NPC's gift hook for a given item
// produces: flavor text and any quest bookkeeping worth surfacing in the
// action response's metadata. EvaluateGiftHook leaves WorldPatches and
// ViewPatches empty; it updates npc.State and world.GlobalState in place.
type GiftResult struct {
	WorldPatches  map[string]any `json:"world_patches,omitempty"`
	ViewPatches   map[string]any `json:"view_patches,omitempty"`
	DialogueText  string         `json:"dialogue_text,omitempty"`
	QuestUpdates  map[string]any `json:"quest_updates,omitempty"`
}

// EvaluateGiftHook applies the declarative rule matching templateID in
// npc's gift table, if any. It mutates npc.State and world.GlobalState in
// place and returns the narrative/metadata payload for the response. No
// rule matching the given item template is not an error: the gift is
// simply accepted with no special effect.
func EvaluateGiftHook(npc *NPC, world *World, templateID string) *GiftResult {
	for _, rule := range npc.GiftHooks {
		if rule.TemplateID != templateID {
			continue
		}
		return applyGiftRule(npc, world, rule)
	}
	return &GiftResult{}
}

func applyGiftRule(npc *NPC, world *World, rule GiftHookRule) *GiftResult {
	result := &GiftResult{
		DialogueText: rule.DialogueText,
		QuestUpdates: map[string]any{},
	}

	if npc.State == nil {
		npc.State = map[string]any{}
	}

	count := 0
	if rule.IncrementState != "" {
		if v, ok := npc.State[rule.IncrementState].(float64); ok {
			count = int(v)
		} else if v, ok := npc.State[rule.IncrementState].(int); ok {
			count = v
		}
		count++
		npc.State[rule.IncrementState] = count
		result.QuestUpdates[rule.IncrementState] = count
	}

	if rule.Threshold > 0 && count >= rule.Threshold {
		if rule.QuestActiveKey != "" {
			npc.State[rule.QuestActiveKey] = false
			result.QuestUpdates["quest_active"] = false
		}
		result.QuestUpdates["quest_complete"] = true
		if rule.CompleteDialogue != "" {
			result.DialogueText = rule.CompleteDialogue
		}
		if rule.GlobalStateKey != "" && world != nil {
			if world.GlobalState == nil {
				world.GlobalState = map[string]any{}
			}
			world.GlobalState[rule.GlobalStateKey] = count
		}
	}

	return result
}
