package slug

import "testing"

func TestMake(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Le Lac", "le-lac"},
		{"À une passante", "a-une-passante"},
		{"L'Œuvre d'art", "l-oeuvre-d-art"},
		{"Demain, dès l’aube...", "demain-des-l-aube"},
		{"  Chanson d'automne  ", "chanson-d-automne"},
		{"Élégie --- 1830", "elegie-1830"},
		{"", ""},
		{"???", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := Make(tt.in); got != tt.want {
				t.Fatalf("Make(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMakeIsStable(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"Le Bateau ivre", "Ô saisons, ô châteaux"} {
		once := Make(in)
		if twice := Make(once); twice != once {
			t.Fatalf("Make(Make(%q)) = %q, want %q", in, twice, once)
		}
	}
}
