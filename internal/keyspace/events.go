package keyspace

import (
	"sort"

	"pvzvoice/internal/textutil"
)

// Canonical event names.
const (
	EventDiscount        = "discount"
	EventCheckProduct    = "check-product"
	EventRatePVZ         = "rate-pvz"
	EventCashOnDelivery  = "cash-on-delivery"
	EventGoods           = "goods"
	EventCellNumber      = "cell-number"
	EventError           = "error"
	EventSuccess         = "success"
	EventReceivingStart  = "receiving-start"
	EventReceivingScan   = "receiving-scan"
	EventReceivingCheck  = "receiving-check"
	EventReceivingPlace  = "receiving-place"
	EventReceivingDone   = "receiving-complete"
	EventReceivingNext   = "receiving-next"
	EventReturnStart     = "return-start"
	EventReturnScan      = "return-scan"
	EventReturnReason    = "return-reason"
	EventReturnConfirm   = "return-confirm"
	EventReturnDone      = "return-complete"
	EventDeliveryStart   = "delivery-start"
	EventDeliveryPayment = "delivery-payment"
	EventBoxAccepted     = "box-accepted"
	EventBoxScanned      = "box-scanned"
	EventScanAgain       = "scan-again"
	EventScanNext        = "scan-next"
	EventContinue        = "continue-acceptance"
	EventItemForPVZ      = "item-for-pvz"
	EventPriorityOrder   = "priority-order"
	EventAlreadyAccepted = "already-accepted"
)

type eventDef struct {
	name     string
	synonyms []string
	// keywords are folded stems scanned for by the keyword strategy.
	keywords []string
	phrase   string
}

var eventTable = []eventDef{
	{
		name: EventDiscount,
		synonyms: []string{
			"check-discount-wallet",
			"Товары со скидкой проверьте ВБ кошелек",
			"Товары со со скидкой проверьте ВБ кошелек",
			"delivery-Товары со скидкой проверьте ВБ кошелек",
			"delivery-Товары со со скидкой проверьте ВБ кошелек",
			"scan-discount-check",
			"discount-announcement",
			"скидка",
			"кошелек",
		},
		keywords: []string{"скидк", "кошел", "wallet", "discount"},
		phrase:   "Товары со скидкой, проверьте ВБ кошелек",
	},
	{
		name: EventCheckProduct,
		synonyms: []string{
			"check-product-camera",
			"check-product-under-camera",
			"delivery-check-product",
			"Проверьте товар под камерой",
			"delivery-Проверьте товар под камерой",
			"камера",
		},
		keywords: []string{"камер", "camera", "check-product"},
		phrase:   "Проверьте товар под камерой",
	},
	{
		name: EventRatePVZ,
		synonyms: []string{
			"rate-pickup-point",
			"delivery-thanks",
			"Оцените наш пункт выдачи в приложении",
			"delivery-Оцените наш пункт выдачи в приложении",
		},
		keywords: []string{"оцен", "пункт выдачи", "rate", "pickpoint"},
		phrase:   "Оцените наш пункт выдачи в приложении",
	},
	{
		name:     EventCashOnDelivery,
		synonyms: []string{"payment_on_delivery", "payment-on-delivery", "Оплата при получении"},
		keywords: []string{"оплат", "payment"},
		phrase:   "Оплата при получении",
	},
	{
		name:     EventGoods,
		synonyms: []string{"delivery-cell-info", "goods_count", "Количество товаров"},
		keywords: []string{"goods", "количеств"},
		phrase:   "Количество товаров",
	},
	{
		name:     EventCellNumber,
		synonyms: []string{"cell_number", "cellnumber", "Ячейка номер"},
		phrase:   "Ячейка номер",
	},
	{
		name:     EventError,
		synonyms: []string{"error_sound", "error-sound", "ошибка"},
		keywords: []string{"error", "ошибк"},
		phrase:   "Ошибка",
	},
	{
		name:     EventSuccess,
		synonyms: []string{"success_sound", "success-sound", "scan-success"},
		keywords: []string{"success", "успешн"},
		phrase:   "Успешно",
	},
	{
		name:     EventReceivingStart,
		synonyms: []string{"receiving_start"},
		phrase:   "Начинаем приемку товаров",
	},
	{
		name:     EventReceivingScan,
		synonyms: []string{"receiving-scan-box", "receiving_scan"},
		phrase:   "Отсканируйте коробку",
	},
	{
		name:     EventReceivingCheck,
		synonyms: []string{"receiving-check-package", "receiving_check"},
		phrase:   "Проверьте целостность упаковки",
	},
	{
		name:     EventReceivingPlace,
		synonyms: []string{"receiving-place-cell", "receiving_place"},
		phrase:   "Разместите товар в ячейку",
	},
	{
		name:     EventReceivingDone,
		synonyms: []string{"receiving-done", "receiving_complete"},
		phrase:   "Приемка завершена",
	},
	{
		name:     EventReceivingNext,
		synonyms: []string{"receiving_next"},
		phrase:   "Следующая коробка",
	},
	{
		name:     EventReturnStart,
		synonyms: []string{"return_start"},
		phrase:   "Начинаем оформление возврата",
	},
	{
		name:     EventReturnScan,
		synonyms: []string{"return-scan-product", "return-scan-item", "return_scan"},
		phrase:   "Отсканируйте товар для возврата",
	},
	{
		name:     EventReturnReason,
		synonyms: []string{"return-select-reason", "return_reason"},
		phrase:   "Укажите причину возврата",
	},
	{
		name:     EventReturnConfirm,
		synonyms: []string{"return_confirm"},
		phrase:   "Подтвердите возврат",
	},
	{
		name:     EventReturnDone,
		synonyms: []string{"return-success", "return_complete"},
		phrase:   "Возврат оформлен",
	},
	{
		name:     EventDeliveryStart,
		synonyms: []string{"delivery_start"},
		phrase:   "Выдача заказа",
	},
	{
		name:     EventDeliveryPayment,
		synonyms: []string{"delivery_payment"},
		phrase:   "Оплата заказа",
	},
	{
		name:     EventBoxAccepted,
		synonyms: []string{"box_accepted", "коробка-принята", "receiving-коробка-принята"},
		phrase:   "Коробка принята",
	},
	{
		name:     EventBoxScanned,
		synonyms: []string{"коробка-отсканирована", "receiving-коробка-отсканирована"},
		phrase:   "Коробка отсканирована",
	},
	{
		name:     EventScanAgain,
		synonyms: []string{"отсканируйте-еще-раз", "receiving-отсканируйте-еще-раз"},
		phrase:   "Отсканируйте еще раз",
	},
	{
		name:     EventScanNext,
		synonyms: []string{"отсканируйте-следующий-товар", "receiving-отсканируйте-следующий-товар"},
		phrase:   "Отсканируйте следующий товар",
	},
	{
		name:     EventContinue,
		synonyms: []string{"продолжайте-приемку", "receiving-продолжайте-приемку"},
		phrase:   "Продолжайте приемку",
	},
	{
		name:     EventItemForPVZ,
		synonyms: []string{"товар-для-пвз", "receiving-товар-для-пвз"},
		phrase:   "Товар для ПВЗ",
	},
	{
		name:     EventPriorityOrder,
		synonyms: []string{"приоритетный-заказ", "receiving-приоритетный-заказ"},
		phrase:   "Приоритетный заказ",
	},
	{
		name:     EventAlreadyAccepted,
		synonyms: []string{"повтор-товар-уже-принят", "receiving-повтор-товар-уже-принят"},
		phrase:   "Повтор, товар уже принят",
	},
}

var (
	eventsByName    = map[string]*eventDef{}
	eventsBySynonym = map[string]string{}
)

func init() {
	for i := range eventTable {
		def := &eventTable[i]
		eventsByName[def.name] = def
		eventsBySynonym[textutil.Fold(def.name)] = def.name
		for _, syn := range def.synonyms {
			eventsBySynonym[textutil.Fold(syn)] = def.name
		}
	}
}

func canonicalEvent(name string) (string, bool) {
	canonical, ok := eventsBySynonym[textutil.Fold(name)]
	return canonical, ok
}

// IsKnownEvent reports whether name is a canonical event or one of its
// historical spellings.
func IsKnownEvent(name string) bool {
	_, ok := canonicalEvent(name)
	return ok
}

// Synonyms returns the historical spellings of a canonical event.
func Synonyms(event string) []string {
	def, ok := eventsByName[event]
	if !ok {
		return nil
	}
	return append([]string(nil), def.synonyms...)
}

// Keywords returns the folded stems the keyword strategy scans for.
// Unknown events yield nil.
func Keywords(event string) []string {
	def, ok := eventsByName[event]
	if !ok {
		return nil
	}
	return append([]string(nil), def.keywords...)
}

// Events lists canonical event names in sorted order.
func Events() []string {
	names := make([]string, 0, len(eventTable))
	for _, def := range eventTable {
		names = append(names, def.name)
	}
	sort.Strings(names)
	return names
}

// Phrase returns the spoken text for a request, used when no recorded
// asset exists.
func Phrase(req Request) (string, bool) {
	switch r := req.(type) {
	case CellRequest:
		if r.ID == "" {
			return "", false
		}
		return "Ячейка номер " + r.ID, true
	case EventRequest:
		def, ok := eventsByName[r.Name]
		if !ok || def.phrase == "" {
			return "", false
		}
		return def.phrase, true
	default:
		return "", false
	}
}
