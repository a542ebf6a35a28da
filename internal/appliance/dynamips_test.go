package appliance

import "testing"

func intp(v int) *int { return &v }

func TestValidateDynamipsProperties_AcceptsFullyPopulated(t *testing.T) {
	p := DynamipsProperties{
		Platform: "c7200",
		Chassis:  "",
		IdlePC:   "0x600207f8",
		VMID:     "a1b2c3d4-e5f6-4789-9abc-def012345678",
		MacAddr:  "aabb.ccdd.eeff",
		Confreg:  "0x2102",
		NPE:      "npe-400",
		Midplane: "vxr",
		Console:  intp(2001),
		Aux:      intp(2501),
		IOMem:    intp(20),
	}
	if err := ValidateDynamipsProperties(p); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateDynamipsProperties_RejectsMissingPlatform(t *testing.T) {
	if err := ValidateDynamipsProperties(DynamipsProperties{}); err == nil {
		t.Fatal("expected error for missing platform")
	}
}

func TestValidateDynamipsProperties_RejectsBadVMID(t *testing.T) {
	p := DynamipsProperties{Platform: "c3725", VMID: "not-a-uuid"}
	if err := ValidateDynamipsProperties(p); err == nil {
		t.Fatal("expected error for malformed vm_id")
	}
}

func TestValidateDynamipsProperties_RejectsBadMacAddr(t *testing.T) {
	p := DynamipsProperties{Platform: "c3725", MacAddr: "not-a-mac"}
	if err := ValidateDynamipsProperties(p); err == nil {
		t.Fatal("expected error for malformed mac_addr")
	}
}

func TestValidateDynamipsProperties_RejectsBadConfreg(t *testing.T) {
	p := DynamipsProperties{Platform: "c3725", Confreg: "2102"}
	if err := ValidateDynamipsProperties(p); err == nil {
		t.Fatal("expected error for confreg missing 0x prefix")
	}
}

func TestValidateDynamipsProperties_RejectsOutOfRangeConsolePort(t *testing.T) {
	p := DynamipsProperties{Platform: "c3725", Console: intp(70000)}
	if err := ValidateDynamipsProperties(p); err == nil {
		t.Fatal("expected error for out-of-range console port")
	}
}

func TestValidateDynamipsProperties_RejectsUnknownNPE(t *testing.T) {
	p := DynamipsProperties{Platform: "c7200", NPE: "npe-999"}
	if err := ValidateDynamipsProperties(p); err == nil {
		t.Fatal("expected error for unknown npe model")
	}
}

func TestValidateDynamipsProperties_RejectsUnknownMidplane(t *testing.T) {
	p := DynamipsProperties{Platform: "c7200", Midplane: "turbo"}
	if err := ValidateDynamipsProperties(p); err == nil {
		t.Fatal("expected error for unknown midplane model")
	}
}

func TestValidateDynamipsProperties_AllowsZeroIOMem(t *testing.T) {
	p := DynamipsProperties{Platform: "c3725", IOMem: intp(0)}
	if err := ValidateDynamipsProperties(p); err != nil {
		t.Fatalf("0%% iomem must be a legal explicit value, got %v", err)
	}
}

func TestValidateDynamipsProperties_RejectsOutOfRangeIOMem(t *testing.T) {
	p := DynamipsProperties{Platform: "c3725", IOMem: intp(150)}
	if err := ValidateDynamipsProperties(p); err == nil {
		t.Fatal("expected error for out-of-range iomem")
	}
}
