package roll

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
)

const (
	maxDice   = 100
	maxSides  = 1000
	maxNumber = 1_000_000
	// products stay below this, so no term can overflow
	maxValue = 1_000_000_000
)

var (
	tokenRegex = regexp.MustCompile(`(?i)(\d*d\d+|\d+|[+\-*/])`)
	diceRegex  = regexp.MustCompile(`(?i)^(\d*)d(\d+)$`)
	validOps   = map[string]bool{"+": true, "-": true, "*": true, "/": true}

	// faces of a six-sided die
	faces = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣"}

	ErrEmptyFormula = errors.New("can't parse your formula, try something like `2d6+1d4*2-3`")
	ErrDivideByZero = errors.New("can't divide by zero")
	ErrTooBig       = fmt.Errorf("result too big, keep it under %d", maxValue)
)

type term struct {
	value int
	desc  string
	op    string
}

// Result is an evaluated formula.
type Result struct {
	Input       string
	Calculation string
	Total       int
}

// Evaluate rolls every dice term of formula with rng and folds the terms,
// * and / before + and -. Anything the tokenizer does not recognise is
// ignored.
func Evaluate(formula string, rng *rand.Rand) (Result, error) {
	formula = strings.ReplaceAll(formula, " ", "")
	tokens := tokenRegex.FindAllString(formula, -1)
	if len(tokens) == 0 {
		return Result{}, ErrEmptyFormula
	}

	var terms []term
	op := "+"
	for _, tok := range tokens {
		if validOps[tok] {
			op = tok
			continue
		}
		val, desc, err := evaluateToken(tok, rng)
		if err != nil {
			return Result{}, fmt.Errorf("failed to evaluate `%s`: %w", tok, err)
		}
		terms = append(terms, term{value: val, desc: desc, op: op})
		op = "+"
	}
	if len(terms) == 0 {
		return Result{}, ErrEmptyFormula
	}

	var merged []term
	for _, t := range terms {
		if t.op != "*" && t.op != "/" {
			merged = append(merged, t)
			continue
		}
		if len(merged) == 0 {
			return Result{}, errors.New("can't multiply or divide by nothing")
		}
		prev := merged[len(merged)-1]
		switch t.op {
		case "*":
			v := int64(prev.value) * int64(t.value)
			if v > maxValue || v < -maxValue {
				return Result{}, ErrTooBig
			}
			prev.value = int(v)
		case "/":
			if t.value == 0 {
				return Result{}, ErrDivideByZero
			}
			prev.value /= t.value
		}
		prev.desc = fmt.Sprintf("%s %s %s", prev.desc, t.op, t.desc)
		merged[len(merged)-1] = prev
	}

	total := 0
	var details []string
	for i, t := range merged {
		if i > 0 {
			details = append(details, t.op)
		}
		details = append(details, t.desc)
		if t.op == "-" {
			total -= t.value
		} else {
			total += t.value
		}
	}

	return Result{
		Input:       formula,
		Calculation: strings.Join(details, " "),
		Total:       total,
	}, nil
}

func evaluateToken(token string, rng *rand.Rand) (int, string, error) {
	m := diceRegex.FindStringSubmatch(token)
	if m == nil {
		num, err := strconv.Atoi(token)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return 0, "", fmt.Errorf("too big, max %d", maxNumber)
			}
			return 0, "", errors.New("not a number or dice")
		}
		if num > maxNumber {
			return 0, "", fmt.Errorf("too big, max %d", maxNumber)
		}
		return num, fmt.Sprintf("`%d`", num), nil
	}

	count := 1
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return 0, "", errors.New("invalid dice count")
		}
		count = n
	}
	sides, err := strconv.Atoi(m[2])
	if err != nil || sides < 2 {
		return 0, "", errors.New("invalid dice sides")
	}
	if count > maxDice || sides > maxSides {
		return 0, "", fmt.Errorf("too big, max %d dice of %d sides", maxDice, maxSides)
	}

	sum := 0
	rolls := make([]string, 0, count)
	for range count {
		r := rng.IntN(sides) + 1
		sum += r
		if sides == 6 {
			rolls = append(rolls, faces[r-1])
		} else {
			rolls = append(rolls, strconv.Itoa(r))
		}
	}
	sep := ", "
	if sides == 6 {
		sep = ""
	}
	return sum, fmt.Sprintf("`%s` [%s]", strings.ToLower(token), strings.Join(rolls, sep)), nil
}
