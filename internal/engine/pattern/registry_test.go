package pattern

import "testing"

func TestDetectDealXDamageEach(t *testing.T) {
	d := Detect("{X}: Crypt Rats deals X damage to each creature and each player.", "crypt rats")

	if d == nil || d.Kind != KindDealXDamageEach {
		t.Fatalf("expected DEAL_X_DAMAGE_EACH, got %+v", d)
	}
	if !d.HasX() {
		t.Fatal("cost should carry {X}")
	}
	if d.Cost != "{x}" {
		t.Fatalf("expected cost {x}, got %q", d.Cost)
	}
}

func TestDetectSpendOnlyRestriction(t *testing.T) {
	d := Detect("{X}: Crypt Rats deals X damage to each creature and each player. Spend only black mana on X.", "crypt rats")

	if d == nil || d.Kind != KindDealXDamageEach {
		t.Fatalf("expected DEAL_X_DAMAGE_EACH, got %+v", d)
	}
	if d.ManaRestriction != "black" {
		t.Fatalf("ManaRestriction = %q, want black", d.ManaRestriction)
	}
}

func TestDetectDealXDamageTarget(t *testing.T) {
	d := Detect("{X}{R}, {T}: Rolling Thunder deals X damage to any target.", "rolling thunder")

	if d == nil || d.Kind != KindDealXDamageTarget {
		t.Fatalf("expected DEAL_X_DAMAGE_TARGET, got %+v", d)
	}
	if d.Cost != "{x}{r}, {t}" {
		t.Fatalf("unexpected cost %q", d.Cost)
	}
}

func TestDetectDestroyManaValueX(t *testing.T) {
	d := Detect("{X}{X}: Destroy each nonland permanent with mana value X.", "test card")

	if d == nil || d.Kind != KindDestroyMVX {
		t.Fatalf("expected DESTROY_MV_X, got %+v", d)
	}
	if len(d.Types) != 1 || d.Types[0] != "nonland" {
		t.Fatalf("unexpected type filter %v", d.Types)
	}
}

func TestDetectPutXCounters(t *testing.T) {
	d := Detect("{X}{G}: Put X +1/+1 counters on Ivy Elemental.", "ivy elemental")

	if d == nil || d.Kind != KindPutXCounters {
		t.Fatalf("expected PUT_X_COUNTERS, got %+v", d)
	}
	if len(d.Keywords) != 1 || d.Keywords[0] != "+1/+1" {
		t.Fatalf("unexpected counter name %v", d.Keywords)
	}
}

func TestDetectBecomesIsPermanentWithoutDuration(t *testing.T) {
	d := Detect("{R/W}: This creature becomes a Kithkin Spirit with base power and toughness 2/2.", "test card")

	if d == nil || d.Kind != KindBecomesTypesPT {
		t.Fatalf("expected BECOMES_X_Y_WITH_TYPES, got %+v", d)
	}
	if d.UntilEndOfTurn {
		t.Fatal("no duration clause means the change persists")
	}
	if d.Power != 2 || d.Toughness != 2 {
		t.Fatalf("unexpected p/t %d/%d", d.Power, d.Toughness)
	}
	if len(d.Types) != 2 || d.Types[0] != "Kithkin" || d.Types[1] != "Spirit" {
		t.Fatalf("unexpected types %v", d.Types)
	}
}

func TestDetectBecomesUntilEndOfTurn(t *testing.T) {
	d := Detect("{2}: This creature becomes a Construct with base power and toughness 4/4 until end of turn.", "test card")

	if d == nil || !d.UntilEndOfTurn {
		t.Fatalf("duration clause should set UntilEndOfTurn, got %+v", d)
	}
}

const figureText = "{R/W}: This creature becomes a Kithkin Spirit with base power and toughness 2/2.\n" +
	"{R/W}{R/W}{R/W}: If this creature is a Spirit, it becomes a Kithkin Spirit Warrior with base power and toughness 4/4.\n" +
	"{R/W}{R/W}{R/W}{R/W}{R/W}{R/W}: If this creature is a Warrior, it becomes a Kithkin Spirit Warrior Avatar with base power and toughness 8/8."

func TestDetectUpgradeStages(t *testing.T) {
	d := Detect(figureText, "figure of destiny")

	if d == nil || d.Kind != KindUpgradeStages {
		t.Fatalf("expected UPGRADE_STAGES, got %+v", d)
	}
	if len(d.Stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(d.Stages))
	}
	if len(d.Stages[0].RequiredTypes) != 0 {
		t.Fatalf("first stage should have no type requirement, got %v", d.Stages[0].RequiredTypes)
	}
	if len(d.Stages[1].RequiredTypes) != 1 || d.Stages[1].RequiredTypes[0] != "Spirit" {
		t.Fatalf("second stage should require Spirit, got %v", d.Stages[1].RequiredTypes)
	}
	if d.Stages[2].Power != 8 || d.Stages[2].Toughness != 8 {
		t.Fatalf("unexpected final stage p/t %d/%d", d.Stages[2].Power, d.Stages[2].Toughness)
	}
}

func TestDetectFlickerImmediate(t *testing.T) {
	d := Detect("Exile target creature you control, then return it to the battlefield under its owner's control.", "test card")

	if d == nil || d.Kind != KindFlickerImmediate {
		t.Fatalf("expected FLICKER_IMMEDIATE, got %+v", d)
	}
}

func TestDetectFlickerDelayed(t *testing.T) {
	d := Detect("Exile target creature. Return it to the battlefield under its owner's control at the beginning of the next end step.", "test card")

	if d == nil || d.Kind != KindFlickerDelayed {
		t.Fatalf("expected FLICKER_DELAYED, got %+v", d)
	}
}

func TestDetectRestrictions(t *testing.T) {
	text := "{X}: Crypt Rats deals X damage to each creature and each player. Activate only once each turn and only if Crypt Rats dealt combat damage to a player this turn."
	d := Detect(text, "crypt rats")

	if d == nil {
		t.Fatal("pattern should still match with trailing restrictions")
	}
	if !d.OncePerTurn {
		t.Fatal("expected OncePerTurn")
	}
	if !d.RequiresCombatDamage {
		t.Fatal("expected RequiresCombatDamage")
	}
	if d.SorceryOnly {
		t.Fatal("SorceryOnly should not be set")
	}
}

func TestDetectNoMatch(t *testing.T) {
	if d := Detect("Flying\nWhen this creature dies, draw a card.", "test card"); d != nil {
		t.Fatalf("unpatterned text should return nil, got %+v", d)
	}
}

type fakeExecutor struct {
	subtypes []string

	eachDamage   int
	targetDamage map[string]int
	destroyedMV  int
	counters     map[string]int
	setTypes     []string
	setPower     int
	setToughness int
	flickered    map[string]bool
}

func newFakeExecutor(subtypes ...string) *fakeExecutor {
	return &fakeExecutor{
		subtypes:     subtypes,
		targetDamage: map[string]int{},
		counters:     map[string]int{},
		flickered:    map[string]bool{},
	}
}

func (f *fakeExecutor) DamageEachCreatureAndPlayer(sourceID string, n int) { f.eachDamage = n }

func (f *fakeExecutor) DamageAnyTarget(sourceID, targetID string, n int) error {
	f.targetDamage[targetID] += n
	return nil
}

func (f *fakeExecutor) DestroyEachWithManaValue(manaValue int, typeFilter string) int {
	f.destroyedMV = manaValue
	return 2
}

func (f *fakeExecutor) AddCounters(permanentID, name string, n int) error {
	f.counters[name] += n
	return nil
}

func (f *fakeExecutor) SetBaseCharacteristics(permanentID string, subtypes []string, power, toughness int, keywords []string) error {
	f.setTypes = subtypes
	f.setPower = power
	f.setToughness = toughness
	f.subtypes = subtypes
	return nil
}

func (f *fakeExecutor) Flicker(permanentID string, delayed bool) error {
	f.flickered[permanentID] = delayed
	return nil
}

func (f *fakeExecutor) PermanentSubtypes(permanentID string) []string { return f.subtypes }

func TestExecuteDealXDamageEach(t *testing.T) {
	d := Detect("{X}: Crypt Rats deals X damage to each creature and each player.", "crypt rats")
	ex := newFakeExecutor()

	res, err := Execute(ex, "src", "", 3, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Applied {
		t.Fatal("expected Applied")
	}
	if ex.eachDamage != 3 {
		t.Fatalf("expected 3 damage to each, got %d", ex.eachDamage)
	}
}

func TestExecutePutXCounters(t *testing.T) {
	d := Detect("{X}{G}: Put X +1/+1 counters on Ivy Elemental.", "ivy elemental")
	ex := newFakeExecutor()

	if _, err := Execute(ex, "src", "", 4, d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ex.counters["+1/+1"] != 4 {
		t.Fatalf("expected 4 +1/+1 counters, got %v", ex.counters)
	}
}

func TestExecuteUpgradeAppliesNextStage(t *testing.T) {
	d := Detect(figureText, "figure of destiny")
	ex := newFakeExecutor("Kithkin")

	res, err := Execute(ex, "src", "", 0, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Applied {
		t.Fatal("first stage should apply to a plain Kithkin")
	}
	if ex.setPower != 2 || ex.setToughness != 2 {
		t.Fatalf("expected 2/2 first stage, got %d/%d", ex.setPower, ex.setToughness)
	}

	// The permanent now satisfies the second stage's Spirit requirement.
	res, err = Execute(ex, "src", "", 0, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Applied || ex.setPower != 4 {
		t.Fatalf("expected second stage 4/4, got %d/%d", ex.setPower, ex.setToughness)
	}
}

func TestExecuteUpgradeNoStageApplies(t *testing.T) {
	d := Detect(figureText, "figure of destiny")
	ex := newFakeExecutor("Kithkin", "Spirit", "Warrior", "Avatar")
	ex.setPower = -1

	// Simulate a fully upgraded permanent: every stage's target types are
	// already satisfied.
	ex.subtypes = []string{"Kithkin", "Spirit", "Warrior", "Avatar"}
	res, err := Execute(ex, "src", "", 0, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Applied {
		t.Fatal("no stage should apply when fully upgraded")
	}
	if ex.setPower != -1 {
		t.Fatal("SetBaseCharacteristics should not have been called")
	}
}

func TestExecuteFlickerDelayed(t *testing.T) {
	d := Detect("Exile target creature. Return it to the battlefield under its owner's control at the beginning of the next end step.", "test card")
	ex := newFakeExecutor()

	if _, err := Execute(ex, "src", "tgt", 0, d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	delayed, ok := ex.flickered["tgt"]
	if !ok || !delayed {
		t.Fatalf("expected delayed flicker of tgt, got %v", ex.flickered)
	}
}

func TestExecuteNilDescriptor(t *testing.T) {
	if _, err := Execute(newFakeExecutor(), "src", "", 0, nil); err == nil {
		t.Fatal("nil descriptor must error")
	}
}
