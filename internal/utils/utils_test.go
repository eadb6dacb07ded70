package utils

import "testing"

func TestMakeMap(t *testing.T) {
	m := MakeMap("region", "neuchatel")
	if len(m) != 1 || m["region"] != "neuchatel" {
		t.Errorf("MakeMap returned %v", m)
	}
}
