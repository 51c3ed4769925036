package loan

// OfferBuckets partitions the loans a viewer published as lender. Every offer
// falls into exactly one bucket.
type OfferBuckets struct {
	// Created offers are still waiting for a borrower.
	Created []*Loan
	// Open offers have been accepted and sit inside the settlement window.
	Open []*Loan
	// Closed offers have settled, one way or the other.
	Closed []*Loan
}

// LoanBuckets partitions the loans a viewer holds as borrower.
type LoanBuckets struct {
	Open   []*Loan
	Closed []*Loan
}

// PartitionOffers groups the viewer's published offers by contract status.
func PartitionOffers(offers []*Loan) OfferBuckets {
	var buckets OfferBuckets
	for _, offer := range offers {
		if offer == nil {
			continue
		}
		switch {
		case offer.Status == StatusCreated:
			buckets.Created = append(buckets.Created, offer)
		case offer.Status.Active():
			buckets.Open = append(buckets.Open, offer)
		default:
			buckets.Closed = append(buckets.Closed, offer)
		}
	}
	return buckets
}

// PartitionLoans groups the viewer's borrowed loans by contract status. A
// Created loan has no borrower and cannot appear in this role; one served by
// the backend anyway is skipped.
func PartitionLoans(loans []*Loan) LoanBuckets {
	var buckets LoanBuckets
	for _, l := range loans {
		if l == nil || l.Status == StatusCreated {
			continue
		}
		if l.Status.Active() {
			buckets.Open = append(buckets.Open, l)
		} else {
			buckets.Closed = append(buckets.Closed, l)
		}
	}
	return buckets
}
