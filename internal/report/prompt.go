package report

import (
	"strings"

	"github.com/mesikahq/clinical-notes/internal/patient"
)

// BuildPrompt renders the clinical report instruction for data. Field values
// are embedded verbatim; empty fields keep their label so the model sees the gap.
func BuildPrompt(data *patient.Patient) string {
	fields := []struct {
		label string
		value string
	}{
		{"Nome", data.Name},
		{"Data de Nascimento", data.DOB},
		{"Gênero", data.Gender},
		{"CPF", data.CPF},
		{"Telefone", data.Phone},
		{"Queixa Principal", data.MainComplaint},
		{"História da Doença Atual", data.HDA},
		{"Doenças Crônicas", data.ChronicDiseases.String()},
		{"Alergias", data.Allergies.String()},
		{"Medicamentos em Uso", data.Medications.String()},
	}

	var b strings.Builder
	b.WriteString("Gere um relatório médico detalhado para o seguinte paciente:\n\n")
	for _, f := range fields {
		b.WriteString(f.label)
		b.WriteString(": ")
		b.WriteString(f.value)
		b.WriteString("\n")
	}
	b.WriteString("\nO relatório deve ser profissional, claro e conciso, focado nos pontos mais relevantes para um médico. ")
	b.WriteString("Redija somente o relatório, sem introdução ou cabeçalho anunciando o que será feito e sem repetir os dados acima ao final.")
	return b.String()
}
