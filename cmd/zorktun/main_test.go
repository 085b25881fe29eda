package main

import "testing"

func TestParsePositionalPortsDefaults(t *testing.T) {
	zorkPort, socksPort, err := parsePositionalPorts(nil)
	if err != nil {
		t.Fatalf("parsePositionalPorts: %v", err)
	}
	if zorkPort != defaultZorkPort || socksPort != defaultSOCKSPort {
		t.Fatalf("got (%d, %d), want (%d, %d)", zorkPort, socksPort, defaultZorkPort, defaultSOCKSPort)
	}
}

func TestParsePositionalPortsBothGiven(t *testing.T) {
	zorkPort, socksPort, err := parsePositionalPorts([]string{"9100", "9200"})
	if err != nil {
		t.Fatalf("parsePositionalPorts: %v", err)
	}
	if zorkPort != 9100 || socksPort != 9200 {
		t.Fatalf("got (%d, %d), want (9100, 9200)", zorkPort, socksPort)
	}
}

func TestParsePositionalPortsOnlyFirstGiven(t *testing.T) {
	zorkPort, socksPort, err := parsePositionalPorts([]string{"9100"})
	if err != nil {
		t.Fatalf("parsePositionalPorts: %v", err)
	}
	if zorkPort != 9100 || socksPort != defaultSOCKSPort {
		t.Fatalf("got (%d, %d), want (9100, %d)", zorkPort, socksPort, defaultSOCKSPort)
	}
}

func TestParsePositionalPortsNonNumericIsError(t *testing.T) {
	if _, _, err := parsePositionalPorts([]string{"not-a-port"}); err == nil {
		t.Fatal("expected error for non-numeric ZORK_PORT")
	}
	if _, _, err := parsePositionalPorts([]string{"9100", "not-a-port"}); err == nil {
		t.Fatal("expected error for non-numeric SOCKS_PORT")
	}
}

func TestParsePositionalPortsTooManyArgsIsError(t *testing.T) {
	if _, _, err := parsePositionalPorts([]string{"1", "2", "3"}); err == nil {
		t.Fatal("expected error for too many positional arguments")
	}
}
