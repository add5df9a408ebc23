package app

import "github.com/JT-427/LiveQuiz/internal/domain"

// computeStats derives the live aggregate from session state. It holds no
// state of its own, so callers recompute after every change.
func computeStats(s *sessionState) domain.Stats {
	answers := s.currentAnswers()
	stats := domain.Stats{
		ParticipantsJoined: len(s.participants),
		AnswersReceived:    len(answers),
	}

	if s.question != nil && s.question.Kind.IsChoice() {
		stats.PerChoiceTally = make(map[string]int, len(s.question.Choices))
		for _, label := range s.question.Choices {
			stats.PerChoiceTally[label] = 0
		}
		for _, answer := range answers {
			for _, idx := range answer.Payload.Choices {
				stats.PerChoiceTally[s.question.Choices[idx]]++
			}
		}
	}

	if len(s.activity.Groups) > 0 || hasGroupedParticipant(s) {
		stats.PerGroup = make(map[string]domain.GroupStats, len(s.activity.Groups))
		for _, group := range s.activity.Groups {
			stats.PerGroup[group] = domain.GroupStats{}
		}
		for id, participant := range s.participants {
			g := stats.PerGroup[participant.Group]
			g.Members++
			if _, answered := answers[id]; answered {
				g.Answers++
			}
			stats.PerGroup[participant.Group] = g
		}
	}
	return stats
}

func hasGroupedParticipant(s *sessionState) bool {
	for _, p := range s.participants {
		if p.Group != "" {
			return true
		}
	}
	return false
}
