package bot

import "testing"

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		frequency int
		r         float64
		want      Action
	}{
		{"milestone off cycle", 666, 10, 0.9, ActionMilestone},
		{"milestone on cycle", 666, 3, 0.01, ActionMilestone},
		{"text", 20, 10, 0.5, ActionText},
		{"sticker at boundary", 20, 10, 0.15, ActionSticker},
		{"sticker", 20, 10, 0.01, ActionSticker},
		{"off cycle", 21, 10, 0.5, ActionNone},
		{"empty corpus", 0, 10, 0.5, ActionNone},
		{"invalid frequency uses default", 10, 0, 0.5, ActionText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.count, tt.frequency, tt.r); got != tt.want {
				t.Errorf("Decide(%d, %d, %v) = %v, want %v", tt.count, tt.frequency, tt.r, got, tt.want)
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text     string
		wantName string
		wantArgs string
		wantOK   bool
	}{
		{"/habla", "habla", "", true},
		{"/Frecuencia 5", "frecuencia", "5", true},
		{"/cita@manolo_bot  Obi-Wan Kenobi ", "cita", "Obi-Wan Kenobi", true},
		{"/stats@Manolo_Bot", "stats", "", true},
		{"/stats@otro_bot", "", "", false},
		{"/cita\nObi-Wan Kenobi", "cita", "Obi-Wan Kenobi", true},
		{"/frecuencia\n5", "frecuencia", "5", true},
		{"/habla\n", "habla", "", true},
		{"/frecuencia\t7", "frecuencia", "7", true},
		{"/cita@manolo_bot\nYoda", "cita", "Yoda", true},
		{"/", "", "", false},
		{"hola", "", "", false},
	}
	for _, tt := range tests {
		name, args, ok := parseCommand(tt.text, "manolo_bot")
		if name != tt.wantName || args != tt.wantArgs || ok != tt.wantOK {
			t.Errorf("parseCommand(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.text, name, args, ok, tt.wantName, tt.wantArgs, tt.wantOK)
		}
	}
}
