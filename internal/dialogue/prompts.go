package dialogue

import (
	"fmt"
	"strings"

	"github.com/nestiq/lead-engine/internal/leads"
)

// promptSet is the per-language outbound copy. Copy is data so tenants can
// eventually localize it without touching transition logic.
type promptSet struct {
	greeting       string
	askLanguage    string
	warmup         string
	askContact     string
	contactThanks  string
	contactInvalid string
	slotPrompts    map[string]string
	offerIntro     string
	offerMore      string
	askContactGate string
	freeform       string
	scheduleOK     string
	urgentHandoff  string
	goodbye        string
	optOutConfirm  string
	clarify        string
	nudges         []string

	slotButtons    map[string][]Button
	languageBtns   []Button
	offerBtns      []Button
	gateBtns       []Button
	freeformBtns   []Button
	contactSkipBtn Button
}

var prompts = map[string]*promptSet{
	"en": {
		greeting:       "Hi! I'm the assistant for %s. I can help you find the right property.",
		askLanguage:    "Which language would you like to continue in?",
		warmup:         "Great! What kind of property are you looking for?",
		askContact:     "So I can have our team follow up, what's the best phone number to reach you?",
		contactThanks:  "Thanks! I've noted your number.",
		contactInvalid: "That doesn't look like a valid phone number. Could you double-check it?",
		slotPrompts: map[string]string{
			leads.SlotCategory: "What type of property are you interested in?",
			leads.SlotBudget:   "What budget range do you have in mind?",
			leads.SlotLocation: "Which area would you prefer?",
			leads.SlotBedrooms: "How many bedrooms do you need?",
		},
		offerIntro:     "Based on what you've told me (%s), I have a few options that fit. Would you like to book a viewing?",
		offerMore:      "Here's another option that matches your criteria. Want to see more, or book a viewing?",
		askContactGate: "I'd love to set that up. What's the best phone number to reach you?",
		freeform:       "Happy to help with anything else. Ask me about areas, prices or the buying process.",
		scheduleOK:     "Perfect, you're booked in. One of our advisors will contact you shortly to confirm the details.",
		urgentHandoff:  "I'm sorry this has been frustrating. Let me get someone from our team to help you right away.",
		goodbye:        "Thanks for chatting with us. Reach out any time!",
		optOutConfirm:  "Understood, we won't message you again. Thanks for your time!",
		clarify:        "Sorry, I didn't quite catch that. Could you rephrase?",
		nudges: []string{
			"Just checking in! Still interested in finding your property? I'm here whenever you're ready.",
			"Hi again! New listings matching your criteria came in this week. Want to take a look?",
			"We're still holding options that fit your search. Shall we pick it back up?",
		},
		slotButtons: map[string][]Button{
			leads.SlotCategory: {
				{Label: "Villa", ID: "cat_villa"},
				{Label: "Apartment", ID: "cat_apartment"},
				{Label: "House", ID: "cat_house"},
			},
			leads.SlotBudget: {
				{Label: "Under 500k", ID: "budget_lt_500k"},
				{Label: "500k – 1M", ID: "budget_500k_1m"},
				{Label: "1M – 2M", ID: "budget_1m_2m"},
				{Label: "2M – 3M", ID: "budget_2m_3m"},
				{Label: "Over 3M", ID: "budget_gt_3m"},
			},
			leads.SlotLocation: {
				{Label: "Beach area", ID: "loc_beach"},
				{Label: "City center", ID: "loc_center"},
				{Label: "Golf community", ID: "loc_golf"},
				{Label: "No preference", ID: "loc_any"},
			},
			leads.SlotBedrooms: {
				{Label: "1", ID: "beds_1"},
				{Label: "2", ID: "beds_2"},
				{Label: "3", ID: "beds_3"},
				{Label: "4+", ID: "beds_4"},
			},
		},
		languageBtns: []Button{
			{Label: "English", ID: "lang_en"},
			{Label: "Español", ID: "lang_es"},
		},
		offerBtns: []Button{
			{Label: "Book a viewing", ID: "offer_book"},
			{Label: "Show me more", ID: "offer_more"},
			{Label: "I have a question", ID: "offer_question"},
		},
		gateBtns: []Button{
			{Label: "Maybe later", ID: "gate_later"},
		},
		freeformBtns: []Button{
			{Label: "See matching options", ID: "free_offers"},
			{Label: "Book a viewing", ID: "offer_book"},
		},
		contactSkipBtn: Button{Label: "Skip for now", ID: "contact_skip"},
	},
	"es": {
		greeting:       "¡Hola! Soy el asistente de %s. Puedo ayudarte a encontrar la propiedad ideal.",
		askLanguage:    "¿En qué idioma prefieres continuar?",
		warmup:         "¡Perfecto! ¿Qué tipo de propiedad estás buscando?",
		askContact:     "Para que nuestro equipo pueda darte seguimiento, ¿cuál es el mejor teléfono para contactarte?",
		contactThanks:  "¡Gracias! He anotado tu número.",
		contactInvalid: "Ese número no parece válido. ¿Puedes revisarlo?",
		slotPrompts: map[string]string{
			leads.SlotCategory: "¿Qué tipo de propiedad te interesa?",
			leads.SlotBudget:   "¿Qué presupuesto tienes en mente?",
			leads.SlotLocation: "¿Qué zona prefieres?",
			leads.SlotBedrooms: "¿Cuántas habitaciones necesitas?",
		},
		offerIntro:     "Según lo que me cuentas (%s), tengo varias opciones que encajan. ¿Quieres agendar una visita?",
		offerMore:      "Aquí tienes otra opción que cumple tus criterios. ¿Quieres ver más o agendar una visita?",
		askContactGate: "Con gusto lo organizo. ¿Cuál es el mejor teléfono para contactarte?",
		freeform:       "Con gusto te ayudo con lo que necesites: zonas, precios o el proceso de compra.",
		scheduleOK:     "¡Perfecto, quedó agendado! Uno de nuestros asesores te contactará en breve para confirmar los detalles.",
		urgentHandoff:  "Lamento que esto haya sido frustrante. Ahora mismo te comunico con alguien de nuestro equipo.",
		goodbye:        "¡Gracias por escribirnos! Estamos a tu disposición.",
		optOutConfirm:  "Entendido, no te escribiremos más. ¡Gracias por tu tiempo!",
		clarify:        "Perdona, no te he entendido bien. ¿Puedes reformularlo?",
		nudges: []string{
			"¿Sigues buscando propiedad? Aquí estoy cuando quieras retomar la búsqueda.",
			"¡Hola de nuevo! Esta semana entraron propiedades que encajan con lo que buscas. ¿Quieres verlas?",
			"Seguimos teniendo opciones que encajan con tu búsqueda. ¿La retomamos?",
		},
		slotButtons: map[string][]Button{
			leads.SlotCategory: {
				{Label: "Villa", ID: "cat_villa"},
				{Label: "Apartamento", ID: "cat_apartment"},
				{Label: "Casa", ID: "cat_house"},
			},
			leads.SlotBudget: {
				{Label: "Menos de 500k", ID: "budget_lt_500k"},
				{Label: "500k – 1M", ID: "budget_500k_1m"},
				{Label: "1M – 2M", ID: "budget_1m_2m"},
				{Label: "2M – 3M", ID: "budget_2m_3m"},
				{Label: "Más de 3M", ID: "budget_gt_3m"},
			},
			leads.SlotLocation: {
				{Label: "Zona de playa", ID: "loc_beach"},
				{Label: "Centro", ID: "loc_center"},
				{Label: "Zona de golf", ID: "loc_golf"},
				{Label: "Sin preferencia", ID: "loc_any"},
			},
			leads.SlotBedrooms: {
				{Label: "1", ID: "beds_1"},
				{Label: "2", ID: "beds_2"},
				{Label: "3", ID: "beds_3"},
				{Label: "4+", ID: "beds_4"},
			},
		},
		languageBtns: []Button{
			{Label: "English", ID: "lang_en"},
			{Label: "Español", ID: "lang_es"},
		},
		offerBtns: []Button{
			{Label: "Agendar visita", ID: "offer_book"},
			{Label: "Ver más opciones", ID: "offer_more"},
			{Label: "Tengo una pregunta", ID: "offer_question"},
		},
		gateBtns: []Button{
			{Label: "Quizás luego", ID: "gate_later"},
		},
		freeformBtns: []Button{
			{Label: "Ver opciones", ID: "free_offers"},
			{Label: "Agendar visita", ID: "offer_book"},
		},
		contactSkipBtn: Button{Label: "Omitir por ahora", ID: "contact_skip"},
	},
}

// promptsFor returns the copy for a language, falling back to English.
func promptsFor(language string) *promptSet {
	if p, ok := prompts[language]; ok {
		return p
	}
	return prompts["en"]
}

// criteriaSummary renders the captured slots into the offer message.
func criteriaSummary(lead *leads.Lead) string {
	var parts []string
	if v, ok := lead.Slot(leads.SlotCategory); ok {
		parts = append(parts, fmt.Sprintf("%v", v.Value))
	}
	if v, ok := lead.Slot(leads.SlotBedrooms); ok {
		parts = append(parts, fmt.Sprintf("%v bedrooms", v.Value))
	}
	if v, ok := lead.Slot(leads.SlotLocation); ok && v.Value != "any" {
		parts = append(parts, fmt.Sprintf("%v", v.Value))
	}
	if ceiling, ok := lead.BudgetCeiling(); ok {
		parts = append(parts, fmt.Sprintf("up to %.0f", ceiling))
	}
	if len(parts) == 0 {
		return "your search"
	}
	return strings.Join(parts, ", ")
}
