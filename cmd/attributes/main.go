// Command attributes creates the contact custom-attribute definitions the
// sync writes into. Run once against a fresh Chatwoot account; existing
// definitions are left alone.
package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Plobli/CobotChatwootSync/internal/adapters/chatwoot"
	"github.com/Plobli/CobotChatwootSync/internal/adapters/observability"
	"github.com/Plobli/CobotChatwootSync/internal/domain"
	"github.com/Plobli/CobotChatwootSync/internal/shared"
)

var definitions = []domain.AttributeDefinition{
	{DisplayName: "Cobot ID", Key: "cobot_id", DisplayType: "text", Description: "Cobot Membership ID"},
	{DisplayName: "Mitgliedschaftsstatus", Key: "cobot_status", DisplayType: "text", Description: "Status der Mitgliedschaft (Aktiv/Gekündigt)"},
	{DisplayName: "Tarif", Key: "cobot_plan", DisplayType: "text", Description: "Aktueller Tarif"},
	{DisplayName: "Mitglied seit", Key: "cobot_member_since", DisplayType: "date", Description: "Startdatum der Mitgliedschaft"},
	{DisplayName: "Cobot Profil URL", Key: "cobot_profile_url", DisplayType: "link", Description: "Link zum Cobot-Profil"},
	{DisplayName: "Telefonnummer", Key: "cobot_phone", DisplayType: "text", Description: "Telefonnummer aus Cobot"},
	{DisplayName: "Adresse", Key: "cobot_adresse", DisplayType: "text", Description: "Cobot Adresse"},
	{DisplayName: "Tarif Änderungsdatum", Key: "cobot_plan_change_date", DisplayType: "text", Description: "Datum der nächsten Tarifänderung"},
	{DisplayName: "Nächste Rechnung", Key: "cobot_next_invoice_date", DisplayType: "text", Description: "Datum der nächsten Rechnung"},
	{DisplayName: "Letzte Rechnung", Key: "cobot_last_invoice_date", DisplayType: "text", Description: "Datum der letzten Rechnung"},
	{DisplayName: "Rechnungsbetrag", Key: "cobot_last_invoice_amount", DisplayType: "text", Description: "Betrag der letzten Rechnung"},
	{DisplayName: "Rechnungsstatus", Key: "cobot_last_invoice_status", DisplayType: "text", Description: "Status der letzten Rechnung (Offen/Bezahlt)"},
	{DisplayName: "Letzte Buchung (Ressource)", Key: "cobot_last_booking_resource", DisplayType: "text", Description: "Ressource der letzten Buchung"},
	{DisplayName: "Letzte Buchung (Datum)", Key: "cobot_last_booking_date", DisplayType: "text", Description: "Datum der letzten Buchung"},
	{DisplayName: "Letzte Buchung (Von)", Key: "cobot_last_booking_from", DisplayType: "text", Description: "Startzeit der letzten Buchung"},
	{DisplayName: "Letzte Buchung (Bis)", Key: "cobot_last_booking_to", DisplayType: "text", Description: "Endzeit der letzten Buchung"},
	{DisplayName: "Buchungshistorie", Key: "cobot_booking_history", DisplayType: "text", Description: "Historie der letzten 5 Buchungen"},
	{DisplayName: "Zugang 24 Stunden", Key: "cobot_cf_zugang_24_stunden", DisplayType: "text", Description: "Custom Field: Zugang 24 Stunden"},
	{DisplayName: "Nachsendeadresse", Key: "cobot_cf_nachsendeadresse", DisplayType: "text", Description: "Custom Field: Nachsendeadresse"},
	{DisplayName: "Firmenbezeichnung Briefkasten", Key: "cobot_cf_firmenbezeichnung_briefkasten", DisplayType: "text", Description: "Custom Field: Firmenbezeichnung Briefkasten"},
	{DisplayName: "Fix Desk", Key: "cobot_cf_fix_desk", DisplayType: "text", Description: "Custom Field: Fix Desk"},
}

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}

	client, err := chatwoot.New(cfg.ChatwootURL, cfg.ChatwootAccountID, cfg.ChatwootToken, cfg.ChatwootRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("chatwoot client init failed")
	}

	existing, err := client.ListAttributeDefinitions(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("listing attribute definitions failed")
	}
	have := make(map[string]bool, len(existing))
	for _, d := range existing {
		have[d.Key] = true
	}

	created, skipped := 0, 0
	for _, d := range definitions {
		if have[d.Key] {
			skipped++
			continue
		}
		if err := client.CreateAttributeDefinition(ctx, d); err != nil {
			log.Error().Err(err).Str("key", d.Key).Msg("create definition failed")
			continue
		}
		log.Info().Str("key", d.Key).Msg("definition created")
		created++
	}
	log.Info().Int("created", created).Int("skipped", skipped).Msg("attribute bootstrap finished")
}
