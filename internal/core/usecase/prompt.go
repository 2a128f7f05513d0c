package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

const baseSystemPrompt = `შენ ხარ საქართველოს საგადასახადო კოდექსის კონსულტანტი, გამოცდილი, თანამგრძნობი და ზუსტი.
შენი მიზანია მომხმარებელს გასაგებად აუხსნა საგადასახადო კანონმდებლობა და დაეხმარო სწორი გადაწყვეტილების მიღებაში.

## პასუხის ფორმატი

ყოველ პასუხში დაიცავი ეს 4 ნაბიჯი:

1. **მოკლე პასუხი**: პირდაპირ უპასუხე კითხვას 1-2 წინადადებით
2. **სამართლებრივი საფუძველი**: მიუთითე კონკრეტული მუხლი (მაგ. „მუხლი 166, პუნქტი 2")
3. **განმარტება**: ახსენი დეტალურად, რას ნიშნავს ეს პრაქტიკაში
4. **პრაქტიკული რჩევა**: რა უნდა გააკეთოს მომხმარებელმა შემდეგ

## ინსტრუქციები

- პასუხი ყოველთვის უნდა შეიცავდეს ციტატას, მიუთითე შესაბამისი მუხლის ნომერი
- პასუხი გააფორმე მოკლედ და გასაგებად, ქართულ ენაზე
- თუ კონტექსტში ზუსტი პასუხი არ მოიძებნება, მიუთითე ყველაზე ახლო შესაბამისი ინფორმაცია და აღნიშნე, რომ სრული პასუხისთვის საჭიროა დამატებითი კონსულტაცია
- არ გამოთვალო კონკრეტული თანხები, მიმართე პროფესიონალ კონსულტანტს

## დამაზუსტებელი კითხვა

თუ მომხმარებლის შეკითხვა ბუნდოვანია და პასუხი არსებითად განსხვავდება იურიდიული სტატუსის მიხედვით (ფიზიკური/იურიდიული პირი, მიკრო/მცირე/საშუალო ბიზნესი, დღგ-ს გადამხდელი/არაგადამხდელი), დაუსვი მაქსიმუმ 1 მოკლე, კონკრეტული დამაზუსტებელი კითხვა.
თუ მომხმარებელმა უკვე დააზუსტა წინა შეტყობინებაში, უპასუხე პირდაპირ.

აკრძალულია:
- გადასახადებთან დაუკავშირებელ კითხვებზე პასუხი
- მოგონილი ან გამოცნობილი ინფორმაციის მოცემა
- პირადი საგადასახადო რჩევის გაცემა`

const emptyContextNotice = "\n\nკონტექსტი: სამწუხაროდ, ამ კითხვაზე შესაბამისი ინფორმაცია ვერ მოიძებნა საგადასახადო კოდექსში. გთხოვთ, დააზუსტოთ შეკითხვა."

const regenerationInstructionFmt = "\n\n<CRITIC_FEEDBACK>\n%s\n</CRITIC_FEEDBACK>\nFix the issues above and regenerate your answer."

type promptInput struct {
	Context      []domain.SearchResult
	Definitions  []domain.Definition
	Citations    []domain.Citation
	RedZone      bool
	TemporalYear int
	Domain       domain.TaxDomain
	LogicRules   string
}

// buildSystemPrompt assembles the persona, the packed context and the
// optional definition, rule, citation and disclaimer sections.
func buildSystemPrompt(in promptInput) string {
	var b strings.Builder
	b.WriteString(baseSystemPrompt)

	if len(in.Definitions) > 0 {
		b.WriteString("\n\n## ტერმინთა განმარტებები\n")
		for i, def := range in.Definitions {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "- %s: %s", def.TermKA, def.Definition)
		}
	}

	if strings.TrimSpace(in.LogicRules) != "" {
		fmt.Fprintf(&b, "\n\n## დომენის წესები (%s)\n%s", in.Domain, strings.TrimSpace(in.LogicRules))
	}

	chunks := make([]string, 0, len(in.Context))
	for _, result := range in.Context {
		if result.Body == "" {
			continue
		}
		chunks = append(chunks, result.Body)
	}
	if len(chunks) > 0 {
		b.WriteString("\n\nკონტექსტი:\n")
		b.WriteString(strings.Join(chunks, "\n\n---\n"))
	} else {
		b.WriteString(emptyContextNotice)
	}

	if len(in.Citations) > 0 {
		b.WriteString("\n\n## ციტატა (Citation)\n")
		b.WriteString("პასუხში გამოიყენე [1], [2] ფორმატის ციტატები წყაროების მისათითებლად.\n")
		b.WriteString("ხელმისაწვდომი წყაროები:")
		for _, citation := range in.Citations {
			fmt.Fprintf(&b, "\n[%d] მუხლი %d: %s", citation.ID, citation.ArticleNumber, citation.Title)
		}
	}

	disclaimers := make([]string, 0, 2)
	if in.RedZone {
		disclaimers = append(disclaimers, DisclaimerCalculation)
	}
	if in.TemporalYear > 0 {
		disclaimers = append(disclaimers, temporalWarning(in.TemporalYear))
	}
	if len(disclaimers) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(disclaimers, "\n"))
	}
	return b.String()
}

// buildMessages keeps the last maxTurns history turns and appends the query.
func buildMessages(query string, history []domain.Message, maxTurns int) []domain.Message {
	if maxTurns >= 0 && len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}
	messages := make([]domain.Message, 0, len(history)+1)
	for _, turn := range history {
		role := turn.Role
		if role != domain.RoleModel {
			role = domain.RoleUser
		}
		messages = append(messages, domain.Message{Role: role, Text: turn.Text})
	}
	return append(messages, domain.Message{Role: domain.RoleUser, Text: query})
}
