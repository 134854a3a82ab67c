package booking

import (
	"fmt"
	"time"

	"voicedesk/agent/internal/catalog"
)

// Spoken response templates. Every failure path maps to one of these; a raw
// error is never spoken.

const (
	respTrouble = "Sorry, I'm having trouble processing that. Could you say it again?"
	respHold    = "One moment, please."
)

func respIdleDefault(org *catalog.Organization) string {
	return fmt.Sprintf("I can book an appointment for you, or answer questions about %s's hours, location, and services. What would you like?", org.Name)
}

func retryPromptFor(n SlotName, org *catalog.Organization) string {
	switch n {
	case SlotTimeWindow:
		return promptTimeWindowRetry()
	case SlotContact:
		return promptContactRetry()
	default:
		return promptServiceRetry(org)
	}
}

func respUnclearIdle(org *catalog.Organization) string {
	return fmt.Sprintf("Sorry, I didn't quite catch that. What service would you like? We offer %s.", org.ServiceNames())
}

func promptService(org *catalog.Organization) string {
	return fmt.Sprintf("What service would you like to book? We offer %s.", org.ServiceNames())
}

func promptServiceRetry(org *catalog.Organization) string {
	return fmt.Sprintf("I didn't catch a service we offer. We have %s. Which one would you like?", org.ServiceNames())
}

func promptTimeWindow() string {
	return "What day and time work best for you?"
}

func promptTimeWindowRetry() string {
	return "Sorry, I didn't get that. What day and time should I look for?"
}

func promptContact() string {
	return "Can I get your name and a phone number for the appointment?"
}

func promptContactRetry() string {
	return "Sorry, I missed that. What name and phone number should I put down?"
}

func promptConfirm(ctx Context) string {
	return fmt.Sprintf("Just to confirm: %s, %s, for %s. Shall I book it?",
		ctx.slot(SlotService).Value, ctx.slot(SlotTimeWindow).Value, ctx.slot(SlotContact).Value)
}

func respStartOver(org *catalog.Organization) string {
	return fmt.Sprintf("No problem, let's start over. What service would you like? We offer %s.", org.ServiceNames())
}

func respBooked(ctx Context) string {
	return fmt.Sprintf("You're all set. I've booked %s for %s, %s. See you then!",
		ctx.slot(SlotService).Value, ctx.slot(SlotTimeWindow).Value, ctx.slot(SlotContact).Value)
}

func respBookedPending(ctx Context) string {
	return fmt.Sprintf("I've got you down for %s, %s. Our calendar is acting up, so someone will confirm the exact time with you shortly.",
		ctx.slot(SlotService).Value, ctx.slot(SlotTimeWindow).Value)
}

func answerHours(org *catalog.Organization) string {
	if org.Hours == "" {
		return "I don't have our hours handy, but I can take a booking for you."
	}
	return fmt.Sprintf("Our hours are %s.", org.Hours)
}

func answerLocation(org *catalog.Organization) string {
	switch org.LocationMode {
	case "mobile":
		return "We come to you. Just tell me where you'd like the appointment."
	case "both":
		if org.Location != "" {
			return fmt.Sprintf("We're at %s, and we also do mobile visits.", org.Location)
		}
		return "We do both in-shop and mobile visits."
	default:
		if org.Location == "" {
			return "I don't have our address handy right now."
		}
		return fmt.Sprintf("We're located at %s.", org.Location)
	}
}

func answerServices(org *catalog.Organization) string {
	return fmt.Sprintf("We offer %s.", org.ServiceNames())
}

func resumePrompt(ret State, org *catalog.Organization, ctx Context) string {
	switch ret {
	case StateCollectService:
		return "Now, " + lowerFirst(promptService(org))
	case StateCollectTimeWindow:
		return "Now, " + lowerFirst(promptTimeWindow())
	case StateCollectContact:
		return "Now, " + lowerFirst(promptContact())
	case StateConfirm:
		return "So, " + lowerFirst(promptConfirm(ctx))
	}
	return ""
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'A' && r[0] <= 'Z' {
		r[0] = r[0] - 'A' + 'a'
	}
	return string(r)
}

// callbackMessage is the reason-specific apology spoken once a callback is
// scheduled.
func callbackMessage(org *catalog.Organization, reason Reason, at time.Time) string {
	when := at.Format("3:04 PM")
	switch reason {
	case ReasonServiceInvalid:
		return fmt.Sprintf("I couldn't match that to one of our services. Someone from %s will call you back around %s to get you booked.", org.Name, when)
	case ReasonCalendarFailure:
		return fmt.Sprintf("I'm having trouble reaching our calendar right now. Someone from %s will call you back around %s to finish your booking.", org.Name, when)
	default:
		return fmt.Sprintf("Let me have someone from %s call you back around %s to help you directly.", org.Name, when)
	}
}

func respFallback(org *catalog.Organization) string {
	return fmt.Sprintf("I'm sorry, I'm unable to schedule a callback right now. Please call %s directly and they'll take care of you.", org.Name)
}

func respAlreadyEscalated(org *catalog.Organization) string {
	return fmt.Sprintf("A callback from %s is already scheduled. They'll sort everything out when they call.", org.Name)
}
