package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"grocery-price-assistant/internal/derror"
	"grocery-price-assistant/internal/domain/model"
	"grocery-price-assistant/internal/domain/ports/repository"
	"grocery-price-assistant/internal/infra/metrics"
)

// LineBreak joins reply lines into the HTML fragment returned to the caller.
const LineBreak = "<br>"

const (
	replyGreeting = "Hello! How can I assist you today? Choose: <br>1. Compare Price <br>2. Product Info <br>3. Bulk Product Comparison"
	replyFarewell = "Goodbye! Have a great day!"

	replyInvalidChoice  = "Invalid choice. Please select 1, 2, or 3."
	replyAskProduct     = "Which product would you like to compare prices for?"
	replyAskProductInfo = "Which product info do you need?"
	replyAskBulkNames   = "Please enter the product names separated by commas."

	replyInvalidProductName = "Invalid product name. Please enter a valid product name."
	replyProductUnavailable = "Sorry, this product is not available on Zepto or BigBasket."
	replyAskQuantity        = "How many kilograms do you need?"

	replyInvalidQuantity    = "Invalid quantity. Please enter a valid number greater than 0."
	replyNonNumericQuantity = "Invalid input. Please enter a numeric value for the quantity."

	replyInfoUnavailable = "Sorry, product info not available."

	replyAskBulkQuantities  = "Please enter the quantity for each product separated by commas."
	replyMalformedBulkList  = "Invalid input. Please enter numeric values separated by commas."
	replyBulkCountMismatch  = "The number of quantities does not match the number of products. Please try again."
	replyLookupUnavailable  = "Sorry, something went wrong while looking that up. Please try again."
	replyNotAvailableSuffix = "Not Available"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

// ChatUseCase is the conversation state machine. One call handles one turn:
// it reads the session's stored state, consults the product lookups as
// needed, and returns the reply fragment.
type ChatUseCase interface {
	HandleTurn(ctx context.Context, sessionID, text string) (string, error)
}

type chatUC struct {
	states    repository.StateRepository
	zepto     repository.ProductLookup
	bigbasket repository.ProductLookup
	log       *zerolog.Logger
}

func NewChatUseCase(states repository.StateRepository, zepto, bigbasket repository.ProductLookup, logger *zerolog.Logger) *chatUC {
	return &chatUC{states: states, zepto: zepto, bigbasket: bigbasket, log: logger}
}

func (c *chatUC) HandleTurn(ctx context.Context, sessionID, text string) (string, error) {
	input := strings.ToLower(strings.TrimSpace(text))

	// Greetings and farewells work at any point and never touch state.
	switch input {
	case "hi", "hello":
		metrics.IncTurn("greeting")
		return replyGreeting, nil
	case "bye", "goodbye":
		metrics.IncTurn("farewell")
		return replyFarewell, nil
	}

	state, err := c.states.GetState(ctx, sessionID)
	if err != nil {
		c.log.Error().Err(err).Str("session_id", sessionID).Msg("read conversation state")
		return replyLookupUnavailable, fmt.Errorf("get state: %w", err)
	}

	if state == nil {
		metrics.IncTurn("menu")
		return c.handleMenu(ctx, sessionID, input)
	}

	metrics.IncTurn(state.Step)
	switch state.Step {
	case repository.StepAwaitingProduct:
		return c.handleProduct(ctx, sessionID, input)
	case repository.StepAwaitingQuantity:
		return c.handleQuantity(ctx, sessionID, state, input)
	case repository.StepAwaitingProductInfo:
		return c.handleProductInfo(ctx, sessionID, input)
	case repository.StepAwaitingBulkProducts:
		return c.handleBulkProducts(ctx, sessionID, input)
	case repository.StepAwaitingBulkQuantities:
		return c.handleBulkQuantities(ctx, sessionID, state, input)
	}

	// Unknown step in the store; drop it so the session isn't stuck.
	c.log.Warn().Str("session_id", sessionID).Str("step", state.Step).Msg("unknown conversation step, clearing")
	if err := c.states.ClearState(ctx, sessionID); err != nil {
		return replyLookupUnavailable, fmt.Errorf("clear state: %w", err)
	}
	return replyInvalidChoice, nil
}

func (c *chatUC) handleMenu(ctx context.Context, sessionID, input string) (string, error) {
	var step, reply string
	switch input {
	case "1":
		step, reply = repository.StepAwaitingProduct, replyAskProduct
	case "2":
		step, reply = repository.StepAwaitingProductInfo, replyAskProductInfo
	case "3":
		step, reply = repository.StepAwaitingBulkProducts, replyAskBulkNames
	default:
		return replyInvalidChoice, nil
	}
	if err := c.states.SetState(ctx, sessionID, &repository.ConversationState{Step: step}); err != nil {
		return replyLookupUnavailable, fmt.Errorf("set state: %w", err)
	}
	return reply, nil
}

// handleProduct runs step 1 of the single-item flow: look the name up on
// both sources and carry the found prices into the quantity step.
func (c *chatUC) handleProduct(ctx context.Context, sessionID, name string) (string, error) {
	if !validProductName(name) {
		return replyInvalidProductName, derror.ErrInvalidProductName
	}

	zepto, err := c.find(ctx, c.zepto, model.SourceZepto, name)
	if err != nil {
		return replyLookupUnavailable, err
	}
	bigbasket, err := c.find(ctx, c.bigbasket, model.SourceBigBasket, name)
	if err != nil {
		return replyLookupUnavailable, err
	}

	if zepto == nil && bigbasket == nil {
		if err := c.states.ClearState(ctx, sessionID); err != nil {
			return replyLookupUnavailable, fmt.Errorf("clear state: %w", err)
		}
		return replyProductUnavailable, nil
	}

	var lines []string
	next := &repository.ConversationState{Step: repository.StepAwaitingQuantity}
	if price, ok := c.priceOf(zepto); ok {
		lines = append(lines, fmt.Sprintf("🛒 Zepto: %s - %s", zepto.Name, model.FormatAmount(price)))
		next.ZeptoPrice = &price
	} else {
		lines = append(lines, "Zepto: "+replyNotAvailableSuffix)
	}
	if price, ok := c.priceOf(bigbasket); ok {
		lines = append(lines, fmt.Sprintf("🛒 BigBasket: %s - %s", bigbasket.Name, model.FormatAmount(price)))
		next.BigBasketPrice = &price
	} else {
		lines = append(lines, "BigBasket: "+replyNotAvailableSuffix)
	}

	if next.ZeptoPrice == nil && next.BigBasketPrice == nil {
		// Records existed but their price text was unparseable.
		if err := c.states.ClearState(ctx, sessionID); err != nil {
			return replyLookupUnavailable, fmt.Errorf("clear state: %w", err)
		}
		return replyProductUnavailable, nil
	}

	if err := c.states.SetState(ctx, sessionID, next); err != nil {
		return replyLookupUnavailable, fmt.Errorf("set state: %w", err)
	}
	lines = append(lines, replyAskQuantity)
	return strings.Join(lines, LineBreak), nil
}

// handleQuantity is terminal on valid input. Invalid input keeps the flow in
// place and the error reply doubles as the re-prompt.
func (c *chatUC) handleQuantity(ctx context.Context, sessionID string, state *repository.ConversationState, input string) (string, error) {
	quantity, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return replyNonNumericQuantity, derror.ErrInvalidQuantity
	}
	if quantity <= 0 {
		return replyInvalidQuantity, derror.ErrInvalidQuantity
	}

	var lines []string
	var zeptoTotal, bigbasketTotal *float64
	if state.ZeptoPrice != nil {
		total := *state.ZeptoPrice * quantity
		zeptoTotal = &total
		lines = append(lines, "Zepto Total: "+model.FormatAmount(total))
	}
	if state.BigBasketPrice != nil {
		total := *state.BigBasketPrice * quantity
		bigbasketTotal = &total
		lines = append(lines, "BigBasket Total: "+model.FormatAmount(total))
	}

	if zeptoTotal != nil && bigbasketTotal != nil {
		switch {
		case *zeptoTotal > *bigbasketTotal:
			lines = append(lines, "BigBasket offers a better price!")
		case *zeptoTotal < *bigbasketTotal:
			lines = append(lines, "Zepto offers a better price!")
		default:
			lines = append(lines, "Both have the same price!")
		}
	}

	if err := c.states.ClearState(ctx, sessionID); err != nil {
		return replyLookupUnavailable, fmt.Errorf("clear state: %w", err)
	}
	return strings.Join(lines, LineBreak), nil
}

// handleProductInfo checks Zepto first and falls back to BigBasket. Always
// terminal, hit or miss.
func (c *chatUC) handleProductInfo(ctx context.Context, sessionID, name string) (string, error) {
	product, err := c.find(ctx, c.zepto, model.SourceZepto, name)
	if err != nil {
		return replyLookupUnavailable, err
	}
	if product == nil {
		product, err = c.find(ctx, c.bigbasket, model.SourceBigBasket, name)
		if err != nil {
			return replyLookupUnavailable, err
		}
	}

	if err := c.states.ClearState(ctx, sessionID); err != nil {
		return replyLookupUnavailable, fmt.Errorf("clear state: %w", err)
	}

	if product == nil {
		return replyInfoUnavailable, nil
	}
	discount := product.Discount
	if discount == "" || discount == "N/A" {
		discount = "No Discount Available"
	}
	lines := []string{
		"Product: " + product.Name,
		"Price: " + product.Price,
		"Discount: " + discount,
	}
	return strings.Join(lines, LineBreak), nil
}

func (c *chatUC) handleBulkProducts(ctx context.Context, sessionID, input string) (string, error) {
	tokens := strings.Split(input, ",")
	names := make([]string, 0, len(tokens))
	for _, t := range tokens {
		names = append(names, strings.TrimSpace(t))
	}
	next := &repository.ConversationState{
		Step:         repository.StepAwaitingBulkQuantities,
		ProductNames: names,
	}
	if err := c.states.SetState(ctx, sessionID, next); err != nil {
		return replyLookupUnavailable, fmt.Errorf("set state: %w", err)
	}
	return replyAskBulkQuantities, nil
}

// handleBulkQuantities reports one line per (name, quantity) pair. A single
// non-numeric token fails the whole turn with no partial output; the stored
// names survive so the caller can resend the quantities.
func (c *chatUC) handleBulkQuantities(ctx context.Context, sessionID string, state *repository.ConversationState, input string) (string, error) {
	tokens := strings.Split(input, ",")
	quantities := make([]float64, 0, len(tokens))
	for _, t := range tokens {
		q, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return replyMalformedBulkList, derror.ErrMalformedQuantityList
		}
		quantities = append(quantities, q)
	}

	if len(quantities) != len(state.ProductNames) {
		if err := c.states.ClearState(ctx, sessionID); err != nil {
			return replyLookupUnavailable, fmt.Errorf("clear state: %w", err)
		}
		return replyBulkCountMismatch, derror.ErrQuantityCountMismatch
	}

	lines := make([]string, 0, len(quantities))
	for i, name := range state.ProductNames {
		quantity := quantities[i]
		if quantity <= 0 {
			lines = append(lines, fmt.Sprintf("Invalid quantity for %s. Please enter a valid number greater than 0.", name))
			continue
		}

		zepto, err := c.find(ctx, c.zepto, model.SourceZepto, name)
		if err != nil {
			return replyLookupUnavailable, err
		}
		bigbasket, err := c.find(ctx, c.bigbasket, model.SourceBigBasket, name)
		if err != nil {
			return replyLookupUnavailable, err
		}

		zeptoPrice, zeptoOK := c.priceOf(zepto)
		bigbasketPrice, bigbasketOK := c.priceOf(bigbasket)
		switch {
		case zeptoOK && bigbasketOK:
			best := zeptoPrice * quantity
			if other := bigbasketPrice * quantity; other < best {
				best = other
			}
			lines = append(lines, fmt.Sprintf("%s: Best Price %s", name, model.FormatAmount(best)))
		case zeptoOK:
			// Single-source hits echo the listed unit price, not a total.
			lines = append(lines, fmt.Sprintf("%s: Zepto %s for %s kg", name, zepto.Price, model.FormatQuantity(quantity)))
		case bigbasketOK:
			lines = append(lines, fmt.Sprintf("%s: BigBasket %s for %s kg", name, bigbasket.Price, model.FormatQuantity(quantity)))
		default:
			lines = append(lines, fmt.Sprintf("%s: %s", name, replyNotAvailableSuffix))
		}
	}

	if err := c.states.ClearState(ctx, sessionID); err != nil {
		return replyLookupUnavailable, fmt.Errorf("clear state: %w", err)
	}
	return strings.Join(lines, LineBreak), nil
}

// find maps a lookup miss to (nil, nil) and anything else unexpected to
// ErrLookupUnavailable so callers can answer with a generic retry reply.
func (c *chatUC) find(ctx context.Context, lookup repository.ProductLookup, source model.Source, name string) (*model.Product, error) {
	product, err := lookup.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, derror.ErrNotFound) {
			metrics.IncLookup(string(source), "miss")
			return nil, nil
		}
		metrics.IncLookup(string(source), "error")
		c.log.Error().Err(err).Str("source", string(source)).Str("query", name).Msg("product lookup failed")
		return nil, fmt.Errorf("%w: %s: %v", derror.ErrLookupUnavailable, source, err)
	}
	metrics.IncLookup(string(source), "hit")
	return product, nil
}

// priceOf parses a record's price text; a nil record or unparseable text
// counts as "no price on this source".
func (c *chatUC) priceOf(product *model.Product) (float64, bool) {
	if product == nil {
		return 0, false
	}
	price, err := product.PriceValue()
	if err != nil {
		c.log.Warn().Err(err).Str("name", product.Name).Str("source", string(product.Source)).Msg("unparseable stored price")
		return 0, false
	}
	return price, true
}

func validProductName(name string) bool {
	stripped := strings.ReplaceAll(name, " ", "")
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
