package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "Concierto en el parque", "Concierto en el parque"},
		{"tags", "<p>Concierto <b>gratis</b></p>", "Concierto gratis"},
		{"entities", "Arte &amp; cultura", "Arte & cultura"},
		{"cdata", "<![CDATA[<strong>Teatro</strong> infantil]]>", "Teatro infantil"},
		{"whitespace", "  Calle\n  Mayor\t1 ", "Calle Mayor 1"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestHTML(t *testing.T) {
	out := HTML(`<p>Taller <a href="https://example.org" onclick="steal()">info</a></p><script>alert(1)</script>`)

	assert.Contains(t, out, "<p>Taller")
	assert.Contains(t, out, `href="https://example.org"`)
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "alert")

	assert.Equal(t, "<b>Hola</b>", HTML("<![CDATA[<b>Hola</b>]]>"))
	assert.Equal(t, "", HTML(""))
}

func TestStripCDATA(t *testing.T) {
	assert.Equal(t, "abc", StripCDATA("<![CDATA[abc]]>"))
	assert.Equal(t, "no wrapper", StripCDATA("no wrapper"))
}
