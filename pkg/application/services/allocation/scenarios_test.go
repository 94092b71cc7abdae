package allocation_test

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mrodz/mql-grouping-engine/pkg/application/dto"
	"github.com/mrodz/mql-grouping-engine/pkg/application/services/allocation"
	testinghelpers "github.com/mrodz/mql-grouping-engine/pkg/application/services/testing"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/repositories/memory"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/solvers/exhaustive"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/solvers/pbsat"
	"github.com/mrodz/mql-grouping-engine/pkg/optimization"
)

var params = optimization.Params{TimeLimit: 5 * time.Second, Workers: 1}

func newService(backend string) *allocation.Service {
	if backend == exhaustive.Name {
		return allocation.NewService(exhaustive.NewOptimizer(0), allocation.WithParams(params))
	}
	return allocation.NewService(pbsat.NewOptimizer(), allocation.WithParams(params))
}

func allocate(backend string, set *dto.RequirementSet) *entities.Solution {
	GinkgoHelper()
	solution, err := newService(backend).Allocate(context.Background(), set)
	Expect(err).NotTo(HaveOccurred())
	Expect(solution.Detail).To(Equal(entities.StatusOptimal))
	return solution
}

// expectInvariants checks a decoded solution against the requirement set it came from
func expectInvariants(set *dto.RequirementSet, solution *entities.Solution) {
	GinkgoHelper()

	catalog := memory.NewItemRepository(0)
	Expect(allocation.Normalize(set.AllSelectedCourses, catalog)).To(Succeed())
	requirements, err := allocation.ResolveRequirements(set.Results, catalog)
	Expect(err).NotTo(HaveOccurred())
	Expect(solution.Requirements).To(HaveLen(len(requirements)))

	creditedItems := make(map[entities.ItemKey]int)
	creditedBases := make(map[entities.BaseIdentity]int)
	for r, report := range solution.Requirements {
		req := requirements[r]
		assigned := report.Assigned()

		Expect(assigned).To(BeNumerically("<=", req.Quantity.Max), "max of requirement %d", r)
		if report.Satisfied {
			Expect(assigned).To(BeNumerically(">=", req.Quantity.Min), "min of requirement %d", r)
		} else if req.Quantity.Min == 0 {
			Expect(assigned).To(BeZero(), "unsatisfied zero-min requirement %d", r)
		} else {
			Expect(assigned).To(BeNumerically("<", req.Quantity.Min), "unsatisfied requirement %d", r)
		}

		selected := make(map[entities.ItemKey]bool)
		for _, key := range report.Selected {
			selected[key] = true
			creditedItems[key]++
			Expect(catalog.Has(key)).To(BeTrue())
			if base, ok := catalog.BaseIdentity(key); ok {
				creditedBases[base]++
			}
		}
		for g, group := range req.Groups {
			inGroup := 0
			for _, key := range group.Candidates {
				if selected[key] {
					inGroup++
				}
			}
			Expect(inGroup).To(BeNumerically("<=", group.Limit), "group %d of requirement %d", g, r)
		}
	}

	for key, count := range creditedItems {
		Expect(count).To(Equal(1), "item %s credited more than once", key)
	}
	for base, count := range creditedBases {
		Expect(count).To(Equal(1), "base identity %s credited more than once", base)
	}
	Expect(solution.TotalItems).To(Equal(len(creditedItems)))
}

func satisfiedFlags(solution *entities.Solution) []bool {
	flags := make([]bool, len(solution.Requirements))
	for i, report := range solution.Requirements {
		flags[i] = report.Satisfied
	}
	return flags
}

var _ = Describe("Allocation", func() {
	for _, backend := range []string{pbsat.Name, exhaustive.Name} {
		backend := backend

		Context("with the "+backend+" backend", func() {
			It("credits only one of two cross-listed variants", func() {
				set := testinghelpers.SharedBaseIdentity()
				solution := allocate(backend, set)

				Expect(solution.TotalSatisfied).To(Equal(1))
				Expect(solution.SelectedCourses).To(HaveLen(1))
				Expect(solution.Requirements[0].Selected).To(HaveLen(1))
				Expect(solution.Requirements[0].Satisfied).To(BeTrue())
				expectInvariants(set, solution)
			})

			It("treats a chain of cross-listings as one base identity", func() {
				intro := testinghelpers.Course("CPSC 101", "CPSC 100")
				honors := testinghelpers.Course("CPSC 102", "CPSC 101")
				set := testinghelpers.Set(testinghelpers.Pool(intro, honors),
					testinghelpers.Requirement("Intro", 1, testinghelpers.Single(1), intro),
					testinghelpers.Requirement("Intro honors", 1, testinghelpers.Single(1), honors),
				)
				solution := allocate(backend, set)

				Expect(solution.TotalSatisfied).To(Equal(1))
				Expect(solution.TotalItems).To(Equal(1))
				expectInvariants(set, solution)
			})

			It("gives a contested course to the higher priority requirement", func() {
				set := testinghelpers.ContestedCourse()
				solution := allocate(backend, set)

				calculus, multivariable := solution.Requirements[0], solution.Requirements[1]
				Expect(multivariable.Satisfied).To(BeTrue())
				Expect(multivariable.Selected).To(Equal([]entities.ItemKey{entities.CourseKey("MATH2260")}))
				Expect(calculus.Satisfied).To(BeFalse())
				Expect(calculus.Selected).To(Equal([]entities.ItemKey{entities.CourseKey("MATH2250")}))
				Expect(solution.TotalSatisfied).To(Equal(1))
				Expect(solution.TotalItems).To(Equal(2))
				expectInvariants(set, solution)
			})

			It("solves an empty requirement set", func() {
				solution := allocate(backend, &dto.RequirementSet{})

				Expect(solution.OK()).To(BeTrue())
				Expect(solution.Requirements).To(BeEmpty())
				Expect(solution.TotalSatisfied).To(BeZero())
				Expect(solution.TotalItems).To(BeZero())
			})

			It("treats a zero minimum as satisfied", func() {
				set := testinghelpers.OptionalRequirement()
				solution := allocate(backend, set)

				Expect(solution.Requirements[0].Satisfied).To(BeTrue())
				Expect(solution.Requirements[0].Assigned()).To(BeNumerically("<=", 2))
				expectInvariants(set, solution)
			})

			It("prefers a course over a placement credit", func() {
				set := testinghelpers.CourseOrPlacement()
				solution := allocate(backend, set)

				Expect(solution.Requirements[0].Satisfied).To(BeTrue())
				Expect(solution.Requirements[0].Selected).To(Equal([]entities.ItemKey{entities.CourseKey("MATH 1120")}))
				Expect(solution.SelectedPlacements).To(BeEmpty())
				expectInvariants(set, solution)
			})

			It("satisfies a higher tier before any number of lower tier requirements", func() {
				set := testinghelpers.TierTradeOff()
				solution := allocate(backend, set)

				Expect(satisfiedFlags(solution)).To(Equal([]bool{true, false, false, false}))
				expectInvariants(set, solution)
			})

			It("respects group caps inside a requirement", func() {
				a, b, c := testinghelpers.Course("A 1"), testinghelpers.Course("B 1"), testinghelpers.Course("C 1")
				set := testinghelpers.Set(testinghelpers.Pool(a, b, c),
					testinghelpers.WithGroupQuantities(
						testinghelpers.Requirement("two, at most one of A/B", 1, testinghelpers.Single(2),
							testinghelpers.Group(a, b), c),
						testinghelpers.Single(1),
					),
				)
				solution := allocate(backend, set)

				Expect(solution.Requirements[0].Satisfied).To(BeTrue())
				Expect(solution.Requirements[0].Selected).To(ContainElement(entities.CourseKey("C 1")))
				expectInvariants(set, solution)
			})

			It("reports the same satisfaction outcome on every run", func() {
				set := testinghelpers.TierTradeOff()
				first := allocate(backend, set)
				second := allocate(backend, set)

				Expect(second.TotalSatisfied).To(Equal(first.TotalSatisfied))
				Expect(satisfiedFlags(second)).To(Equal(satisfiedFlags(first)))
				Expect(second.RunID).NotTo(Equal(first.RunID))
			})
		})
	}

	Describe("random instances", func() {
		It("agree across backends and keep every invariant", func() {
			rng := rand.New(rand.NewSource(2024))
			for round := 0; round < 20; round++ {
				set := randomSet(rng)

				reference := allocate(exhaustive.Name, set)
				solved := allocate(pbsat.Name, set)

				expectInvariants(set, reference)
				expectInvariants(set, solved)
				Expect(solved.Objective).To(Equal(reference.Objective), "round %d", round)
				Expect(solved.TotalSatisfied).To(Equal(reference.TotalSatisfied), "round %d", round)
			}
		})
	})
})

// randomSet builds a small set with cross-listed courses, placements, groups and caps
func randomSet(rng *rand.Rand) *dto.RequirementSet {
	var pool []dto.ItemEntry
	for i := 0; i < 4; i++ {
		codes := []string{fmt.Sprintf("CPSC %d", 100+i)}
		if rng.Intn(3) == 0 {
			// cross-listed with the previous course's number
			codes = append(codes, fmt.Sprintf("CPSC %d", 99+i))
		}
		pool = append(pool, testinghelpers.Course(codes...))
	}
	pool = append(pool, testinghelpers.Placement(fmt.Sprintf("p%d", rng.Intn(100)), "placement"))

	var results []dto.RequirementResult
	for r := 0; r < 3; r++ {
		var candidates []dto.ItemEntry
		for _, i := range rng.Perm(len(pool))[:1+rng.Intn(3)] {
			candidates = append(candidates, pool[i])
		}
		floor := rng.Intn(3)
		quantity := testinghelpers.Many(floor, floor+rng.Intn(2))
		result := testinghelpers.Requirement(fmt.Sprintf("r%d", r), 1+rng.Intn(3), quantity,
			testinghelpers.Group(candidates...))
		if rng.Intn(2) == 0 {
			result = testinghelpers.WithGroupQuantities(result, testinghelpers.Single(1))
		}
		results = append(results, result)
	}
	return testinghelpers.Set(pool, results...)
}
