package config

import (
	"errors"
	"strings"
	"testing"
)

func TestLexer(t *testing.T) {
	input := `security {
    zones {
        security-zone trust {
            interfaces {
                eth0.0;
            }
        }
    }
}`
	lex := NewLexer(input)
	expected := []struct {
		typ TokenType
		val string
	}{
		{TokenIdentifier, "security"},
		{TokenLBrace, "{"},
		{TokenIdentifier, "zones"},
		{TokenLBrace, "{"},
		{TokenIdentifier, "security-zone"},
		{TokenIdentifier, "trust"},
		{TokenLBrace, "{"},
		{TokenIdentifier, "interfaces"},
		{TokenLBrace, "{"},
		{TokenIdentifier, "eth0.0"},
		{TokenSemicolon, ";"},
		{TokenRBrace, "}"},
		{TokenRBrace, "}"},
		{TokenRBrace, "}"},
		{TokenRBrace, "}"},
		{TokenEOF, ""},
	}

	for i, exp := range expected {
		tok := lex.Next()
		if tok.Type != exp.typ {
			t.Errorf("token %d: expected type %s, got %s (value=%q)", i, exp.typ, tok.Type, tok.Value)
		}
		if exp.val != "" && tok.Value != exp.val {
			t.Errorf("token %d: expected value %q, got %q", i, exp.val, tok.Value)
		}
	}
}

func TestLexerComments(t *testing.T) {
	input := `# this is a comment
/* block
   comment */
// line comment
security;`
	lex := NewLexer(input)
	tok := lex.Next()
	if tok.Type != TokenIdentifier || tok.Value != "security" {
		t.Errorf("expected 'security', got %s %q", tok.Type, tok.Value)
	}
	if tok.Line != 5 {
		t.Errorf("expected line 5, got %d", tok.Line)
	}
}

func TestLexerBrackets(t *testing.T) {
	lex := NewLexer("destination-address [ ];")
	want := []TokenType{TokenIdentifier, TokenLBracket, TokenRBracket, TokenSemicolon, TokenEOF}
	for i, typ := range want {
		if tok := lex.Next(); tok.Type != typ {
			t.Fatalf("token %d: expected %s, got %s", i, typ, tok.Type)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	lex := NewLexer(`description "a \"b\" \\ c\n"; "open`)
	if p := lex.Peek(); p.Type != TokenIdentifier || lex.Peek() != p {
		t.Fatalf("Peek = %s, consumed input", p)
	}
	lex.Next()
	tok := lex.Next()
	if tok.Type != TokenString || tok.Value != "a \"b\" \\ c\n" || tok.Column != 13 {
		t.Errorf("string token = %s at column %d", tok, tok.Column)
	}
	if tok := lex.Next(); tok.Type != TokenSemicolon {
		t.Errorf("expected ';', got %s", tok)
	}
	if tok := lex.Next(); tok.Type != TokenError || tok.Value != "unterminated string" {
		t.Errorf("expected unterminated string, got %s %q", tok.Type, tok.Value)
	}
	if tok := lex.Next(); tok.Type != TokenEOF {
		t.Errorf("expected EOF, got %s", tok)
	}
}

func TestBracketList(t *testing.T) {
	input := `security {
    policies {
        from-zone trust to-zone untrust {
            policy allow-all {
                match {
                    source-address any;
                    destination-address [ server1 server2 server3 ];
                    application [ junos-http junos-https ];
                }
                then {
                    permit;
                }
            }
        }
    }
}`
	tree, errs := NewParser(input).Parse()
	if len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}

	match := tree.Find(MustParsePath("security.policies.from-zone[trust to-zone untrust].policy[allow-all].match"))
	if match == nil {
		t.Fatal("match block not found")
	}
	src := match.FindChild("source-address")
	if src.Kind != KindLeafSet || len(src.Values) != 1 || src.Values[0] != "any" {
		t.Errorf("source-address: kind=%s values=%v", src.Kind, src.Values)
	}
	dst := match.FindChild("destination-address")
	if len(dst.Values) != 3 {
		t.Errorf("expected 3 dst addresses, got %d: %v", len(dst.Values), dst.Values)
	}
	app := match.FindChild("application")
	if len(app.Values) != 2 {
		t.Errorf("expected 2 applications, got %d: %v", len(app.Values), app.Values)
	}
}

func TestEmptyBracketList(t *testing.T) {
	tree, err := Parse(`security { policies { from-zone a to-zone b { policy p {
        match { destination-address [ ]; }
    } } } }`)
	if err != nil {
		t.Fatal(err)
	}
	var dst *Node
	tree.Walk(nil, func(_ Path, n *Node) bool {
		if n.Keyword == "destination-address" {
			dst = n
		}
		return true
	})
	if dst == nil {
		t.Fatal("destination-address not parsed")
	}
	if dst.Kind != KindLeafSet {
		t.Errorf("kind = %s, want leaf-set", dst.Kind)
	}
	if dst.Values == nil || len(dst.Values) != 0 {
		t.Errorf("values = %#v, want empty non-nil slice", dst.Values)
	}
}

func TestParseHierarchical(t *testing.T) {
	input := `security {
    zones {
        security-zone trust {
            interfaces {
                eth0.0;
            }
        }
        security-zone untrust {
            interfaces {
                eth1.0;
            }
        }
    }
    policies {
        from-zone trust to-zone untrust {
            policy allow-web {
                match {
                    source-address any;
                }
                then {
                    permit;
                    log {
                        session-init;
                    }
                }
            }
        }
    }
}`

	tree, errs := NewParser(input).Parse()
	if len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}

	secNode := tree.FindChild("security")
	if secNode == nil || secNode.Kind != KindStanza {
		t.Fatal("missing 'security' stanza")
	}

	zones := secNode.FindChild("zones").FindChildren("security-zone")
	if len(zones) != 2 {
		t.Fatalf("expected 2 security-zone nodes, got %d", len(zones))
	}
	if zones[0].Name != "trust" || zones[0].Kind != KindKeyedBlock {
		t.Errorf("expected keyed zone 'trust', got %s %q", zones[0].Kind, zones[0].Name)
	}
	if zones[1].Name != "untrust" {
		t.Errorf("expected second zone 'untrust', got %q", zones[1].Name)
	}

	ifaces := zones[0].FindChild("interfaces")
	if ifaces == nil || len(ifaces.Children) != 1 || ifaces.Children[0].Keyword != "eth0.0" {
		t.Fatal("trust zone missing interfaces")
	}

	zp := secNode.FindChild("policies").FindChild("from-zone")
	if zp == nil {
		t.Fatal("missing 'from-zone' node")
	}
	if zp.Name != "trust to-zone untrust" {
		t.Errorf("zone pair name = %q", zp.Name)
	}
	then := zp.Child("policy", "allow-web").FindChild("then")
	if p := then.FindChild("permit"); p == nil || p.Kind != KindLeafScalar {
		t.Error("missing permit leaf")
	}
}

func TestParseAddressBook(t *testing.T) {
	tree, err := Parse(`security {
    address-book {
        global {
            address _0_0 10.0.0.0/8;
            address-set _0 {
                address _0_0;
            }
        }
    }
}`)
	if err != nil {
		t.Fatal(err)
	}
	global := tree.Find(MustParsePath("security.address-book.global"))
	if global == nil {
		t.Fatal("global book missing")
	}
	addr := global.Child("address", "_0_0")
	if addr == nil || addr.Value != "10.0.0.0/8" {
		t.Fatalf("address _0_0 = %+v", addr)
	}
	set := global.Child("address-set", "_0")
	if set == nil || set.Kind != KindKeyedBlock {
		t.Fatalf("address-set _0 = %+v", set)
	}
	if m := set.Child("address", "_0_0"); m == nil || m.Value != "" {
		t.Errorf("address-set member = %+v", m)
	}
}

func TestParseDirectives(t *testing.T) {
	input := `security {
    replace: address-book {
        global {
            address a 10.0.0.1/32;
        }
    }
    replace : policies {
    }
}
delete: applications;
`
	tree, errs := NewParser(input).Parse()
	if len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	sec := tree.FindChild("security")
	if sec.Verb != VerbMerge {
		t.Errorf("security verb = %s", sec.Verb)
	}
	if ab := sec.FindChild("address-book"); ab == nil || ab.Verb != VerbReplace {
		t.Errorf("address-book: %+v", ab)
	}
	if pol := sec.FindChild("policies"); pol == nil || pol.Verb != VerbReplace {
		t.Errorf("policies: %+v", pol)
	}
	apps := tree.FindChild("applications")
	if apps == nil || apps.Verb != VerbDelete || apps.Kind != KindLeafScalar {
		t.Errorf("applications: %+v", apps)
	}
}

func TestParseDSCPRewrite(t *testing.T) {
	tree, err := Parse(`security { policies { from-zone a to-zone b { policy p {
        match { dscp [ af41-af42 5 ]; dscp-except be; }
        then { permit; dscp af42; }
    } } } }`)
	if err != nil {
		t.Fatal(err)
	}
	pol := tree.Find(MustParsePath("security.policies.from-zone.a.to-zone.b.policy.p"))
	if pol == nil {
		t.Fatal("policy not found via flat path")
	}
	match := pol.FindChild("match")
	if d := match.FindChild("dscp"); d.Kind != KindLeafSet || len(d.Values) != 2 {
		t.Errorf("match dscp = %+v", d)
	}
	if d := match.FindChild("dscp-except"); d.Kind != KindLeafSet || d.Values[0] != "be" {
		t.Errorf("match dscp-except = %+v", d)
	}
	if d := pol.FindChild("then").FindChild("dscp"); d.Kind != KindLeafScalar || d.Value != "af42" {
		t.Errorf("then dscp = %+v", d)
	}
}

func TestParseApplyGroupsList(t *testing.T) {
	tree, err := Parse(`security { policies { from-zone a to-zone b { apply-groups [ g2 g1 ]; } } }`)
	if err != nil {
		t.Fatal(err)
	}
	zp := tree.Find(MustParsePath("security.policies.from-zone[a to-zone b]"))
	ag := zp.FindChild("apply-groups")
	if ag.Kind != KindList || strings.Join(ag.Values, ",") != "g2,g1" {
		t.Errorf("apply-groups = %+v", ag)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unclosed block", "security {"},
		{"missing semicolon", "security { zones }"},
		{"unclosed bracket", "a [ b c ;"},
		{"stray brace", "}"},
		{"bad char", "security { @ }"},
		{"unterminated string", `description "abc`},
		{"dangling verb", "replace: ;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := NewParser(tt.input).Parse()
			if len(errs) == 0 {
				t.Fatal("expected parse error")
			}
			var pe *ParseError
			if !errors.As(errs[0], &pe) {
				t.Fatalf("expected *ParseError, got %T", errs[0])
			}
			if pe.Line == 0 {
				t.Error("parse error has no position")
			}
		})
	}
}

func TestParseRecovers(t *testing.T) {
	tree, errs := NewParser("a b {; c; }\nd;").Parse()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if tree.FindChild("d") == nil {
		t.Error("statement after error was dropped")
	}
}

func TestFormatRoundTrip(t *testing.T) {
	input := `security {
    replace: address-book {
        global {
            address _0_0 10.0.0.0/8;
            address-set _0 {
                address _0_0;
            }
        }
    }
    policies {
        from-zone trust to-zone untrust {
            policy p1 {
                match {
                    source-address any;
                    destination-address [ ];
                    dscp [ af41 34 ];
                }
                then {
                    permit;
                }
            }
        }
    }
}
delete: applications;
`
	tree, errs := NewParser(input).Parse()
	if len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}

	output := tree.Format()
	if output != input {
		t.Errorf("round trip mismatch:\n--- got ---\n%s\n--- want ---\n%s", output, input)
	}

	again, err := Parse(output)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Equal(tree) {
		t.Error("reparsed tree differs")
	}
}

func TestFormatQuotedStrings(t *testing.T) {
	input := `security { policies { from-zone trust to-zone untrust {
    policy p {
        description "allow; web";
        match { source-address [ "lab net" any ]; application "" ; }
        then { permit; }
    }
    policy q { description "say \"hi\" \\o/"; }
} } }
system { login { message "line one\nline two"; } }`
	tree, err := Parse(input)
	if err != nil {
		t.Fatal(err)
	}
	out := tree.Format()
	for _, want := range []string{
		`description "allow; web";`,
		`source-address [ "lab net" any ];`,
		`application "";`,
		`description "say \"hi\" \\o/";`,
		`message "line one\nline two";`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format missing %q in:\n%s", want, out)
		}
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, out)
	}
	if !again.Equal(tree) {
		t.Errorf("reparsed tree differs:\n%s", again.Format())
	}

	set := tree.FormatSet()
	if !strings.Contains(set, `set security policies from-zone trust to-zone untrust policy p description "allow; web"`+"\n") {
		t.Errorf("FormatSet:\n%s", set)
	}
}

func TestFormatSet(t *testing.T) {
	tree, err := Parse(`security { address-book { global { address a 10.0.0.1/32; } } }
security { policies { from-zone x to-zone y { policy p { match { destination-address [ a b ]; application [ ]; } } } } }`)
	if err != nil {
		t.Fatal(err)
	}
	got := tree.FormatSet()
	for _, want := range []string{
		"set security address-book global address a 10.0.0.1/32\n",
		"set security policies from-zone x to-zone y policy p match destination-address a\n",
		"set security policies from-zone x to-zone y policy p match destination-address b\n",
		"set security policies from-zone x to-zone y policy p match application [ ]\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatSet missing %q in:\n%s", want, got)
		}
	}
}
