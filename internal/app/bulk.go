package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/Plobli/CobotChatwootSync/internal/adapters/observability"
	"github.com/Plobli/CobotChatwootSync/internal/domain"
)

// Summary is the final report of a bulk run.
type Summary struct {
	Total   int
	Success int
	Failed  int
	Created int
	Updated int
	Errors  []MemberError
}

type MemberError struct {
	Member string
	Err    string
}

// BulkSyncer enumerates every member once and pushes the fully assembled
// attribute set through the same service the webhook paths use. Throughput is
// bounded by a token bucket rather than fixed sleeps, and by a semaphore
// whose default weight of one keeps the run sequential.
type BulkSyncer struct {
	cobot   domain.CobotClient
	svc     *SyncService
	limiter *rate.Limiter
	workers int64

	memberPageSize  int
	invoicePageSize int
}

func NewBulkSyncer(cobot domain.CobotClient, svc *SyncService, limiter *rate.Limiter, workers, memberPageSize, invoicePageSize int) *BulkSyncer {
	if workers < 1 {
		workers = 1
	}
	return &BulkSyncer{
		cobot:           cobot,
		svc:             svc,
		limiter:         limiter,
		workers:         int64(workers),
		memberPageSize:  memberPageSize,
		invoicePageSize: invoicePageSize,
	}
}

// Run fetches one page of members and one page of invoices, then works
// through the members. Per-member failures are collected and the run
// continues; only the initial enumeration can abort it.
func (b *BulkSyncer) Run(ctx context.Context) (Summary, error) {
	members, err := b.cobot.ListMemberships(ctx, b.memberPageSize)
	if err != nil {
		return Summary{}, fmt.Errorf("list memberships: %w", err)
	}
	if len(members) == b.memberPageSize {
		log.Warn().Int("page_size", b.memberPageSize).Msg("member page came back full, members beyond one page are not synced")
	}

	invoices, err := b.cobot.ListInvoices(ctx, b.invoicePageSize)
	if err != nil {
		return Summary{}, fmt.Errorf("list invoices: %w", err)
	}
	if len(invoices) == b.invoicePageSize {
		log.Warn().Int("page_size", b.invoicePageSize).Msg("invoice page came back full, older invoices missing")
	}

	log.Info().Int("members", len(members)).Int("invoices", len(invoices)).Msg("bulk sync starting")

	sum := Summary{Total: len(members)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(b.workers)

	for _, member := range members {
		if err := b.limiter.Wait(ctx); err != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(m domain.Member) {
			defer wg.Done()
			defer sem.Release(1)

			outcome, err := b.svc.SyncMemberFull(ctx, m, invoices)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sum.Failed++
				sum.Errors = append(sum.Errors, MemberError{Member: contactName(m), Err: err.Error()})
				log.Warn().Err(err).Str("membership", m.ID).Str("email", m.Email).Msg("bulk item failed")
				return
			}
			sum.Success++
			switch outcome {
			case outcomeCreated:
				sum.Created++
			case outcomeUpdated:
				sum.Updated++
			}
		}(member)
	}
	wg.Wait()

	log.Info().
		Int("total", sum.Total).
		Int("success", sum.Success).
		Int("created", sum.Created).
		Int("updated", sum.Updated).
		Int("failed", sum.Failed).
		Msg("bulk sync finished")
	return sum, nil
}

// SyncMemberFull assembles the complete attribute set for one member: the
// member baseline, the most recent invoice out of the prefetched list, a
// four-month booking window and the custom fields, then upserts the contact.
func (s *SyncService) SyncMemberFull(ctx context.Context, member domain.Member, invoices []domain.Invoice) (string, error) {
	attrs := s.mapper.MemberAttributes(member)
	attrs["cobot_next_invoice_date"] = FormatDateTime(s.mapper.Loc, member.NextInvoiceAt)

	if latest := latestInvoiceFor(member.ID, invoices); latest != nil {
		attrs = domain.MergeAttributes(attrs, s.mapper.InvoiceAttributes(*latest, member))
	} else {
		attrs["cobot_last_invoice_date"] = ""
		attrs["cobot_last_invoice_amount"] = ""
		attrs["cobot_last_invoice_status"] = ""
	}

	// Booking window: the API caps ranges at four months.
	now := s.now()
	bookings, err := s.cobot.ListBookings(ctx, member.ID, now.AddDate(0, -3, 0), now.AddDate(0, 1, 0))
	if err != nil {
		log.Warn().Err(err).Str("membership", member.ID).Msg("bookings unavailable")
		bookings = nil
	}
	if len(bookings) > 0 {
		SortBookingsNewestFirst(bookings)
		latest := bookings[0]
		attrs["cobot_last_booking_resource"] = bookingResourceName(latest)
		attrs["cobot_last_booking_date"] = FormatDate(s.mapper.Loc, latest.From)
		attrs["cobot_last_booking_from"] = FormatDateTime(s.mapper.Loc, latest.From)
		attrs["cobot_last_booking_to"] = FormatDateTime(s.mapper.Loc, latest.To)
		attrs["cobot_booking_history"] = s.mapper.BookingHistory(bookings)
	} else {
		attrs["cobot_last_booking_resource"] = ""
		attrs["cobot_last_booking_date"] = ""
		attrs["cobot_last_booking_from"] = ""
		attrs["cobot_last_booking_to"] = ""
		attrs["cobot_booking_history"] = ""
	}

	attrs = domain.MergeAttributes(attrs, s.customFieldAttributes(ctx, member.ID))

	contact, err := s.findContact(ctx, member.Email)
	if err != nil {
		s.record(ctx, "bulk", syncResult{MembershipID: member.ID, Email: member.Email, Outcome: outcomeFailed}, err.Error())
		observability.ObserveSync("bulk", outcomeFailed)
		return "", err
	}

	var outcome string
	if contact == nil {
		// Unknown email: create with the full set directly.
		if _, err := s.chatwoot.CreateContact(ctx, domain.NewContact{
			Name:             contactName(member),
			Email:            member.Email,
			CustomAttributes: attrs,
		}); err != nil {
			s.record(ctx, "bulk", syncResult{MembershipID: member.ID, Email: member.Email, Outcome: outcomeFailed}, err.Error())
			observability.ObserveSync("bulk", outcomeFailed)
			return "", fmt.Errorf("create contact: %w", err)
		}
		outcome = outcomeCreated
	} else {
		if err := s.updateContact(ctx, contact, contactName(member), attrs); err != nil {
			s.record(ctx, "bulk", syncResult{MembershipID: member.ID, Email: member.Email, Outcome: outcomeFailed}, err.Error())
			observability.ObserveSync("bulk", outcomeFailed)
			return "", err
		}
		outcome = outcomeUpdated
	}

	s.record(ctx, "bulk", syncResult{MembershipID: member.ID, Email: member.Email, Outcome: outcome}, "")
	observability.ObserveSync("bulk", outcome)
	return outcome, nil
}

func latestInvoiceFor(membershipID string, invoices []domain.Invoice) *domain.Invoice {
	var own []domain.Invoice
	for _, inv := range invoices {
		if inv.MembershipID == membershipID {
			own = append(own, inv)
		}
	}
	if len(own) == 0 {
		return nil
	}
	SortInvoicesNewestFirst(own)
	return &own[0]
}
